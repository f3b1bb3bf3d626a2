package agent

import (
	"errors"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/metrics"
)

// ErrBusy is returned in TurnResult.Err when a turn arrives while a
// previous one is still being processed.
var ErrBusy = errors.New("turn already in progress")

// Session lifecycle states, reported through Status.
const (
	StateIdle       = "idle"
	StateListening  = "listening"
	StateProcessing = "processing"
	StateSpeaking   = "speaking"
)

// TurnResult carries everything a single turn produced. Fields fill in
// progressively: a transcription failure leaves only Err set, a
// synthesis failure leaves Audio nil but Text and Response usable.
type TurnResult struct {
	Text     string
	Response string
	Audio    []byte
	Language string
	Metrics  metrics.Turn
	Err      error
}

// Degraded reports whether the turn produced a usable reply without
// audio, so the caller can fall back to a text channel.
func (r TurnResult) Degraded() bool {
	return r.Response != "" && len(r.Audio) == 0
}

// PromptBuilder renders the system prompt for a language code. The
// session calls it once at start and again whenever the conversation
// language changes.
type PromptBuilder func(language string) string
