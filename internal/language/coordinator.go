// Package language tracks which language the pipeline should run in,
// reconciling the caller's explicit choice with what transcription
// actually detects turn by turn.
package language

import (
	"sync"

	"github.com/rs/zerolog"
)

var languageNames = map[string]string{
	"te-IN": "Telugu",
	"hi-IN": "Hindi",
	"en-IN": "English",
	"gu-IN": "Gujarati",
}

// Name returns the human-readable name for a language code.
func Name(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}

// Known reports whether the code is one of the supported languages.
func Known(code string) bool {
	_, ok := languageNames[code]
	return ok
}

// Options tunes the auto-switch behavior.
type Options struct {
	// Default is used when nothing was selected or detected yet.
	Default string
	// SwitchThreshold is how many consecutive identical mismatched
	// detections it takes to switch the selected language.
	SwitchThreshold int
	// HistorySize bounds the retained detection history.
	HistorySize int
	// MinTurnsBeforeSwitch prevents switching on the very first turns.
	MinTurnsBeforeSwitch int
}

func (o *Options) applyDefaults() {
	if o.Default == "" {
		o.Default = "te-IN"
	}
	if o.SwitchThreshold <= 0 {
		o.SwitchThreshold = 2
	}
	if o.HistorySize <= 0 {
		o.HistorySize = 5
	}
	if o.MinTurnsBeforeSwitch <= 0 {
		o.MinTurnsBeforeSwitch = 1
	}
}

// Status is a read-only snapshot of the coordinator state.
type Status struct {
	Selected             string
	Detected             string
	History              []string
	ConsecutiveDifferent int
	LastDifferent        string
	TurnCount            int
	SwitchCount          int
}

// Coordinator decides the processing language for each turn. A single
// mismatched detection never flips the conversation; the same differing
// language must be seen SwitchThreshold times in a row.
type Coordinator struct {
	mu   sync.Mutex
	opts Options
	log  zerolog.Logger

	selected             string
	detected             string
	history              []string
	consecutiveDifferent int
	lastDifferent        string
	turnCount            int
	switchCount          int
}

// NewCoordinator builds a Coordinator with selected preset to the default
// language, mirroring an IVR flow that always starts from a known choice.
func NewCoordinator(opts Options, log zerolog.Logger) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		opts:     opts,
		log:      log.With().Str("component", "language").Logger(),
		selected: opts.Default,
	}
}

// SetLanguage applies an explicit choice (IVR menu, API override). All
// auto-switch tracking resets so the streak cannot span the override.
func (c *Coordinator) SetLanguage(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !Known(code) {
		c.log.Warn().Str("code", code).Msg("unknown language code selected")
	}
	c.selected = code
	c.consecutiveDifferent = 0
	c.lastDifferent = ""
	c.log.Info().Str("language", code).Str("name", Name(code)).Msg("language selected")
}

// SetDetected records the language transcription reported for a completed
// turn and performs the auto-switch bookkeeping.
func (c *Coordinator) SetDetected(code string) {
	if code == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detected = code
	c.history = append(c.history, code)
	if len(c.history) > c.opts.HistorySize {
		c.history = c.history[len(c.history)-c.opts.HistorySize:]
	}
	c.turnCount++

	if c.selected == "" || code == c.selected {
		c.consecutiveDifferent = 0
		c.lastDifferent = ""
		return
	}

	if code == c.lastDifferent {
		c.consecutiveDifferent++
	} else {
		c.lastDifferent = code
		c.consecutiveDifferent = 1
	}

	if c.consecutiveDifferent >= c.opts.SwitchThreshold && c.turnCount >= c.opts.MinTurnsBeforeSwitch {
		c.log.Info().
			Str("from", c.selected).
			Str("to", code).
			Int("streak", c.consecutiveDifferent).
			Msg("auto-switching language")
		c.selected = code
		c.consecutiveDifferent = 0
		c.lastDifferent = ""
		c.switchCount++
	}
}

// EnsureConsistency returns the single language code the whole pipeline
// must use this turn: selected, else detected, else the default.
func (c *Coordinator) EnsureConsistency() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != "" {
		return c.selected
	}
	if c.detected != "" {
		return c.detected
	}
	return c.opts.Default
}

// SwitchStatus returns a snapshot of the switch tracking state. It never
// mutates the coordinator.
func (c *Coordinator) SwitchStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	hist := make([]string, len(c.history))
	copy(hist, c.history)
	return Status{
		Selected:             c.selected,
		Detected:             c.detected,
		History:              hist,
		ConsecutiveDifferent: c.consecutiveDifferent,
		LastDifferent:        c.lastDifferent,
		TurnCount:            c.turnCount,
		SwitchCount:          c.switchCount,
	}
}

// Reset returns the coordinator to its initial state.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = c.opts.Default
	c.detected = ""
	c.history = nil
	c.consecutiveDifferent = 0
	c.lastDifferent = ""
	c.turnCount = 0
	c.switchCount = 0
}
