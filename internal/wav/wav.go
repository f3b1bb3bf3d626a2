// Package wav provides the minimal G.711 and RIFF plumbing the telephony
// pipeline needs: mu-law <-> 16-bit PCM conversion and WAV container
// wrapping/unwrapping for the providers that only speak WAV.
package wav

import (
	"encoding/binary"
	"fmt"
)

const (
	muLawBias = 0x84
	muLawClip = 32635

	formatPCM   = 1
	formatMuLaw = 7
)

// MuLawToPCM16 expands G.711 mu-law bytes to linear 16-bit samples.
func MuLawToPCM16(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = muLawDecodeSample(b)
	}
	return out
}

// MuLawFromPCM16 compresses linear 16-bit samples to G.711 mu-law.
func MuLawFromPCM16(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = muLawEncodeSample(s)
	}
	return out
}

func muLawDecodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exp := (b >> 4) & 0x07
	mant := b & 0x0F
	v := ((int(mant) << 3) + muLawBias) << exp
	v -= muLawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}

func muLawEncodeSample(s int16) byte {
	v := int(s)
	sign := byte(0)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias
	exp := byte(7)
	for mask := 0x4000; mask != 0 && v&mask == 0; mask >>= 1 {
		exp--
	}
	mant := byte((v >> (uint(exp) + 3)) & 0x0F)
	return ^(sign | exp<<4 | mant)
}

// EncodeMuLawFile wraps raw mu-law audio in a playable WAV container.
func EncodeMuLawFile(data []byte, sampleRate int) []byte {
	return encodeFile(data, sampleRate, formatMuLaw, 1, 8)
}

// EncodePCM16File wraps linear 16-bit little-endian samples in a WAV container.
func EncodePCM16File(samples []int16, sampleRate int) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return encodeFile(data, sampleRate, formatPCM, 1, 16)
}

func encodeFile(data []byte, sampleRate int, format uint16, channels uint16, bits uint16) []byte {
	blockAlign := channels * bits / 8
	byteRate := uint32(sampleRate) * uint32(blockAlign)

	buf := make([]byte, 0, 44+len(data))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(data)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, format)
	buf = binary.LittleEndian.AppendUint16(buf, channels)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, blockAlign)
	buf = binary.LittleEndian.AppendUint16(buf, bits)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	return buf
}

// DecodePCM16 extracts linear 16-bit mono samples from a WAV container.
// Only uncompressed 16-bit PCM is supported; anything else is an error.
func DecodePCM16(b []byte) ([]int16, int, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("wav: not a RIFF/WAVE file")
	}

	var sampleRate int
	var format, bits uint16
	sawFmt := false

	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("wav: short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(b[body:])
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4:]))
			bits = binary.LittleEndian.Uint16(b[body+14:])
			sawFmt = true
		case "data":
			if !sawFmt {
				return nil, 0, fmt.Errorf("wav: data chunk before fmt")
			}
			if format != formatPCM || bits != 16 {
				return nil, 0, fmt.Errorf("wav: unsupported format=%d bits=%d", format, bits)
			}
			n := size / 2
			samples := make([]int16, n)
			for i := 0; i < n; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(b[body+i*2:]))
			}
			return samples, sampleRate, nil
		}
		// chunks are word-aligned
		if size%2 == 1 {
			size++
		}
		off = body + size
	}
	return nil, 0, fmt.Errorf("wav: no data chunk")
}
