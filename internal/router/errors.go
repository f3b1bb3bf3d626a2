package router

import "errors"

// Stage errors surfaced to the orchestrator. Provider failures are wrapped
// so callers can classify with errors.Is.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrGeneration    = errors.New("generation failed")
	ErrSynthesis     = errors.New("synthesis failed")
	// ErrCircuitOpen means the capability is currently isolated; it is
	// returned without invoking the provider at all.
	ErrCircuitOpen = errors.New("circuit breaker open")
)
