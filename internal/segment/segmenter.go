// Package segment turns the continuous inbound frame stream into discrete
// utterances using energy-based voice activity detection. A spoken turn
// ends once trailing silence reaches the endpoint threshold.
package segment

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/wav"
)

// Encoding identifies the sample format of inbound frames.
type Encoding string

const (
	EncodingMuLaw Encoding = "mulaw"
	EncodingPCM16 Encoding = "pcm16"
)

// Config holds the segmentation thresholds.
type Config struct {
	SampleRate int
	Encoding   Encoding
	// EnergyThreshold is the RMS (over linear 16-bit samples) at or above
	// which a frame counts as speech.
	EnergyThreshold float64
	// EndpointSilence is the trailing silence that ends an utterance.
	EndpointSilence time.Duration
	// MinSpeech rejects shorter bursts as noise.
	MinSpeech time.Duration
}

// DefaultTelephony is tuned for Twilio media streams: 8 kHz mu-law,
// 20 ms frames.
func DefaultTelephony() Config {
	return Config{
		SampleRate:      8000,
		Encoding:        EncodingMuLaw,
		EnergyThreshold: 300,
		EndpointSilence: 700 * time.Millisecond,
		MinSpeech:       250 * time.Millisecond,
	}
}

// Segmenter buffers speech frames and emits completed utterances on a
// channel. PushFrame never blocks; when the consumer is busy, finished
// utterances queue up and are delivered in order once it drains.
type Segmenter struct {
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	speech     []byte
	gap        []byte
	speechDur  time.Duration
	silenceDur time.Duration
	pending    [][]byte

	utterances chan []byte
}

func NewSegmenter(cfg Config, log zerolog.Logger) *Segmenter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 8000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingMuLaw
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = 300
	}
	if cfg.EndpointSilence <= 0 {
		cfg.EndpointSilence = 700 * time.Millisecond
	}
	if cfg.MinSpeech <= 0 {
		cfg.MinSpeech = 250 * time.Millisecond
	}
	return &Segmenter{
		cfg:        cfg,
		log:        log.With().Str("component", "segment").Logger(),
		utterances: make(chan []byte, 8),
	}
}

// Utterances delivers completed speech buffers in arrival order.
func (s *Segmenter) Utterances() <-chan []byte {
	return s.utterances
}

// PushFrame classifies one fixed-duration frame and advances the
// segmentation state. It is synchronous and O(1) per frame.
func (s *Segmenter) PushFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}
	dur := s.frameDuration(frame)
	speech := s.isSpeech(frame)

	s.mu.Lock()
	switch {
	case speech:
		// a short pause inside the utterance is folded back in
		if len(s.gap) > 0 {
			s.speech = append(s.speech, s.gap...)
			s.speechDur += s.silenceDur
			s.gap = s.gap[:0]
		}
		s.speech = append(s.speech, frame...)
		s.speechDur += dur
		s.silenceDur = 0
	case len(s.speech) > 0:
		s.gap = append(s.gap, frame...)
		s.silenceDur += dur
		if s.silenceDur >= s.cfg.EndpointSilence {
			s.endUtteranceLocked()
		}
	default:
		// silence with nothing buffered: drop to bound memory
	}
	s.deliverLocked()
	s.mu.Unlock()
}

// endUtteranceLocked finishes the current speech buffer: queue it when it
// is long enough, discard it as noise otherwise.
func (s *Segmenter) endUtteranceLocked() {
	if s.speechDur >= s.cfg.MinSpeech {
		utt := make([]byte, len(s.speech))
		copy(utt, s.speech)
		s.pending = append(s.pending, utt)
		s.log.Debug().
			Dur("speech", s.speechDur).
			Int("bytes", len(utt)).
			Msg("utterance complete")
	} else {
		s.log.Debug().Dur("speech", s.speechDur).Msg("discarding short burst")
	}
	s.speech = s.speech[:0]
	s.gap = s.gap[:0]
	s.speechDur = 0
	s.silenceDur = 0
}

// deliverLocked hands queued utterances to the channel without blocking.
func (s *Segmenter) deliverLocked() {
	for len(s.pending) > 0 {
		select {
		case s.utterances <- s.pending[0]:
			s.pending = s.pending[1:]
		default:
			return
		}
	}
}

// Flush ends any in-progress utterance immediately (call teardown).
func (s *Segmenter) Flush() {
	s.mu.Lock()
	if len(s.speech) > 0 {
		s.endUtteranceLocked()
	}
	s.deliverLocked()
	s.mu.Unlock()
}

// Reset drops all buffered audio and queued utterances.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	s.speech = s.speech[:0]
	s.gap = s.gap[:0]
	s.speechDur = 0
	s.silenceDur = 0
	s.pending = nil
	s.mu.Unlock()
}

// Close releases the utterance channel after the final Flush.
func (s *Segmenter) Close() {
	s.mu.Lock()
	for len(s.pending) > 0 {
		select {
		case s.utterances <- s.pending[0]:
			s.pending = s.pending[1:]
		default:
			s.pending = nil
		}
	}
	s.mu.Unlock()
	close(s.utterances)
}

func (s *Segmenter) frameDuration(frame []byte) time.Duration {
	samples := len(frame)
	if s.cfg.Encoding == EncodingPCM16 {
		samples /= 2
	}
	return time.Duration(samples) * time.Second / time.Duration(s.cfg.SampleRate)
}

func (s *Segmenter) isSpeech(frame []byte) bool {
	return s.rms(frame) >= s.cfg.EnergyThreshold
}

func (s *Segmenter) rms(frame []byte) float64 {
	var samples []int16
	if s.cfg.Encoding == EncodingPCM16 {
		n := len(frame) / 2
		samples = make([]int16, n)
		for i := 0; i < n; i++ {
			samples[i] = int16(binary.LittleEndian.Uint16(frame[i*2:]))
		}
	} else {
		samples = wav.MuLawToPCM16(frame)
	}
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
