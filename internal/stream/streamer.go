// Package stream paces synthesized audio out to a caller in fixed-size
// chunks so the far end receives it at playback rate rather than in one
// burst.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives paced audio chunks. Connected reports whether the
// underlying transport is still up; Stream checks it before every write
// so a hangup mid-reply aborts quietly.
type Sink interface {
	WriteAudio(chunk []byte) error
	Connected() bool
}

const (
	// 20ms of 8kHz mu-law.
	defaultChunkSize = 160
	defaultInterval  = 20 * time.Millisecond
)

// Streamer writes audio buffers to a Sink one chunk per tick.
type Streamer struct {
	chunkSize int
	interval  time.Duration
	log       zerolog.Logger
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithChunkSize overrides the per-tick chunk size in bytes.
func WithChunkSize(n int) Option {
	return func(s *Streamer) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithInterval overrides the pacing interval.
func WithInterval(d time.Duration) Option {
	return func(s *Streamer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func NewStreamer(log zerolog.Logger, opts ...Option) *Streamer {
	s := &Streamer{
		chunkSize: defaultChunkSize,
		interval:  defaultInterval,
		log:       log.With().Str("component", "stream").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream sends audio to the sink at playback pace. It returns nil when
// the whole buffer was delivered or the sink disconnected partway; a
// write failure is returned to the caller.
func (s *Streamer) Stream(ctx context.Context, audio []byte, sink Sink) error {
	if len(audio) == 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	sent := 0
	for offset := 0; offset < len(audio); offset += s.chunkSize {
		if !sink.Connected() {
			s.log.Debug().Int("sent_bytes", sent).Msg("sink disconnected, aborting stream")
			return nil
		}

		end := offset + s.chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := sink.WriteAudio(audio[offset:end]); err != nil {
			return fmt.Errorf("write audio chunk at offset %d: %w", offset, err)
		}
		sent = end

		if end == len(audio) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	s.log.Debug().Int("sent_bytes", sent).Msg("finished streaming audio")
	return nil
}
