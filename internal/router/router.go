// Package router is the single gateway to the external speech and language
// capabilities. It owns retry policy and circuit breaking; nothing else in
// the process talks to a provider directly.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/history"
)

// Transcriber converts one utterance of audio into text. The returned
// language code is what the provider detected, which may differ from the hint.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (text string, detectedLanguage string, err error)
}

// Generator produces the assistant reply for the given message sequence.
type Generator interface {
	Generate(ctx context.Context, messages []history.Message) (string, error)
}

// Synthesizer renders text as raw audio in the transport's wire format
// (mu-law 8 kHz mono for the telephony path).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Settings tunes retries, timeouts, and circuit breaking for the router.
type Settings struct {
	// RetryCount is the number of attempts for transcription and synthesis.
	// Generation is never retried: regenerating a reply is not idempotent
	// for a conversation.
	RetryCount int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// CallTimeout bounds every single provider call.
	CallTimeout time.Duration
	// Breakers enables per-capability circuit breaking when non-nil.
	Breakers *BreakerSettings
}

func (s *Settings) applyDefaults() {
	if s.RetryCount <= 0 {
		s.RetryCount = 2
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 500 * time.Millisecond
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 15 * time.Second
	}
}

// Router routes turn work to the transcribe, generate, and synthesize
// capabilities with bounded retries and optional circuit breaking.
type Router struct {
	stt Transcriber
	llm Generator
	tts Synthesizer

	settings Settings
	log      zerolog.Logger

	sttBreaker *Breaker
	llmBreaker *Breaker
	ttsBreaker *Breaker
}

// NewRouter wires the three capabilities behind retry and breaker policy.
func NewRouter(stt Transcriber, llm Generator, tts Synthesizer, settings Settings, log zerolog.Logger) *Router {
	settings.applyDefaults()
	r := &Router{
		stt:      stt,
		llm:      llm,
		tts:      tts,
		settings: settings,
		log:      log.With().Str("component", "router").Logger(),
	}
	if settings.Breakers != nil {
		r.sttBreaker = NewBreaker("transcribe", *settings.Breakers, log)
		r.llmBreaker = NewBreaker("generate", *settings.Breakers, log)
		r.ttsBreaker = NewBreaker("synthesize", *settings.Breakers, log)
	}
	return r
}

// Transcribe attempts speech-to-text up to RetryCount times. A blank
// transcript counts as a failed attempt. An open circuit aborts before any
// further attempt is made.
func (r *Router) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, string, error) {
	var text, detected string
	var lastErr error
	for attempt := 1; attempt <= r.settings.RetryCount; attempt++ {
		err := r.call(ctx, r.sttBreaker, func(ctx context.Context) error {
			t, d, err := r.stt.Transcribe(ctx, audio, languageHint)
			if err != nil {
				return err
			}
			if strings.TrimSpace(t) == "" {
				return errors.New("empty transcript")
			}
			text, detected = t, d
			return nil
		})
		if err == nil {
			return text, detected, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			return "", "", fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Int("of", r.settings.RetryCount).Msg("transcription attempt failed")
		if attempt < r.settings.RetryCount {
			if werr := wait(ctx, r.settings.RetryDelay); werr != nil {
				return "", "", fmt.Errorf("%w: %w", ErrTranscription, werr)
			}
		}
	}
	return "", "", fmt.Errorf("%w: %w", ErrTranscription, lastErr)
}

// Generate produces the assistant reply for userText against the given
// context. It is a single attempt by design.
func (r *Router) Generate(ctx context.Context, userText string, convo []history.Message, language string) (string, error) {
	messages := make([]history.Message, 0, len(convo)+1)
	messages = append(messages, convo...)
	messages = append(messages, history.Message{Role: history.RoleUser, Content: userText})

	var response string
	err := r.call(ctx, r.llmBreaker, func(ctx context.Context) error {
		resp, err := r.llm.Generate(ctx, messages)
		if err != nil {
			return err
		}
		if strings.TrimSpace(resp) == "" {
			return errors.New("empty response")
		}
		response = strings.TrimSpace(resp)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrCircuitOpen) {
			r.log.Warn().Err(err).Str("language", language).Msg("generation failed")
		}
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return response, nil
}

// Synthesize renders the reply as audio, retrying like Transcribe. Empty
// audio counts as a failed attempt.
func (r *Router) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	var audio []byte
	var lastErr error
	for attempt := 1; attempt <= r.settings.RetryCount; attempt++ {
		err := r.call(ctx, r.ttsBreaker, func(ctx context.Context) error {
			b, err := r.tts.Synthesize(ctx, text, language)
			if err != nil {
				return err
			}
			if len(b) == 0 {
				return errors.New("empty audio")
			}
			audio = b
			return nil
		})
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Int("of", r.settings.RetryCount).Msg("synthesis attempt failed")
		if attempt < r.settings.RetryCount {
			if werr := wait(ctx, r.settings.RetryDelay); werr != nil {
				return nil, fmt.Errorf("%w: %w", ErrSynthesis, werr)
			}
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrSynthesis, lastErr)
}

// BreakerStatuses reports the state of each capability breaker, keyed by
// capability name. Empty when circuit breaking is disabled.
func (r *Router) BreakerStatuses() map[string]BreakerStatus {
	if r.sttBreaker == nil {
		return nil
	}
	return map[string]BreakerStatus{
		"transcribe": r.sttBreaker.Status(),
		"generate":   r.llmBreaker.Status(),
		"synthesize": r.ttsBreaker.Status(),
	}
}

// ResetBreakers forces every capability breaker back to closed. No-op
// when circuit breaking is disabled.
func (r *Router) ResetBreakers() {
	if r.sttBreaker == nil {
		return
	}
	r.sttBreaker.Reset()
	r.llmBreaker.Reset()
	r.ttsBreaker.Reset()
}

// call runs one provider attempt. The attempt gets its own timeout,
// detached from the session context: a hangup mid-flight lets the call
// finish (the result is simply discarded), while the retry waits in the
// loops above still observe the session context.
func (r *Router) call(ctx context.Context, b *Breaker, op func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.settings.CallTimeout)
	defer cancel()
	if b == nil {
		return op(cctx)
	}
	return b.Call(cctx, op)
}

// wait sleeps for d but returns early if the session is torn down.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
