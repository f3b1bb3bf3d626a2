// Package agent orchestrates a single call: it turns caller utterances
// into transcribed text, a generated reply and synthesized audio, while
// keeping conversation history and the active language consistent.
package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/history"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/language"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/metrics"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/router"
)

// Options configures one Session.
type Options struct {
	// MaxHistory bounds the retained conversation in turn pairs.
	MaxHistory int
	// Language configures detection based language switching.
	Language language.Options
	// Prompts builds the system prompt per language. DefaultPromptBuilder
	// is used when nil.
	Prompts PromptBuilder
	// MetricsLimit bounds the per-session turn metrics buffer.
	MetricsLimit int
}

// Session runs the turn pipeline for one call. ProcessTurn is safe to
// call from concurrent goroutines but only one turn runs at a time; the
// loser gets a busy result instead of queueing.
type Session struct {
	id        string
	router    *router.Router
	history   *history.Manager
	lang      *language.Coordinator
	collector *metrics.Collector
	prompts   PromptBuilder
	log       zerolog.Logger

	processing atomic.Bool

	mu           sync.Mutex
	state        string
	lastLanguage string
	customPrompt bool
}

// Status is a read-only snapshot of a session for diagnostics.
type Status struct {
	ID          string                          `json:"id"`
	State       string                          `json:"state"`
	Turns       int                             `json:"turns"`
	Language    language.Status                 `json:"language"`
	Breakers    map[string]router.BreakerStatus `json:"breakers,omitempty"`
	SuccessRate float64                         `json:"success_rate"`
}

func NewSession(rt *router.Router, opts Options, log zerolog.Logger) *Session {
	if opts.Prompts == nil {
		opts.Prompts = DefaultPromptBuilder
	}
	id := uuid.NewString()
	s := &Session{
		id:        id,
		router:    rt,
		history:   history.NewManager(opts.MaxHistory),
		lang:      language.NewCoordinator(opts.Language, log),
		collector: metrics.NewCollector(opts.MetricsLimit),
		prompts:   opts.Prompts,
		log:       log.With().Str("component", "session").Str("session_id", id).Logger(),
		state:     StateIdle,
	}
	s.lastLanguage = s.lang.EnsureConsistency()
	s.history.SetSystemPrompt(s.prompts(s.lastLanguage))
	return s
}

func (s *Session) ID() string { return s.id }

// Language reports the code the next turn will run in.
func (s *Session) Language() string { return s.lang.EnsureConsistency() }

// Metrics exposes the per-session turn collector.
func (s *Session) Metrics() *metrics.Collector { return s.collector }

// Transcript returns up to n of the most recent conversation turns.
func (s *Session) Transcript(n int) []history.Entry { return s.history.Recent(n) }

// SetState records a lifecycle state for Status reporting.
func (s *Session) SetState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// SetLanguage pins the conversation language, clearing any pending
// switch streak, and refreshes the system prompt to match.
func (s *Session) SetLanguage(code string) {
	s.lang.SetLanguage(code)
	s.mu.Lock()
	s.lastLanguage = code
	custom := s.customPrompt
	s.mu.Unlock()
	if !custom {
		s.history.SetSystemPrompt(s.prompts(code))
	}
}

// SetSystemPrompt overrides the generated prompt. Once set, language
// changes no longer rewrite it.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	s.customPrompt = true
	s.mu.Unlock()
	s.history.SetSystemPrompt(prompt)
}

// ClearContext forgets conversation history but keeps the system prompt
// and language state.
func (s *Session) ClearContext() {
	s.history.ClearHistory()
}

// Status snapshots the session without mutating it.
func (s *Session) Status() Status {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return Status{
		ID:          s.id,
		State:       state,
		Turns:       s.history.TurnCount(),
		Language:    s.lang.SwitchStatus(),
		Breakers:    s.router.BreakerStatuses(),
		SuccessRate: s.collector.SuccessRate(),
	}
}

// ProcessTurn runs one utterance through transcribe, generate and
// synthesize. Failures are reported in the result, never panicked or
// returned out of band: transcription failure yields an empty result,
// generation failure keeps the transcript, synthesis failure degrades
// to a text-only reply.
func (s *Session) ProcessTurn(ctx context.Context, audio []byte) TurnResult {
	if !s.processing.CompareAndSwap(false, true) {
		lang := s.lang.EnsureConsistency()
		s.collector.Record(metrics.Turn{Language: lang, ErrorKind: "busy"})
		s.log.Warn().Msg("turn rejected, previous turn still in flight")
		return TurnResult{Language: lang, Err: ErrBusy}
	}
	defer func() {
		s.processing.Store(false)
		s.SetState(StateIdle)
	}()
	s.SetState(StateProcessing)

	started := time.Now()
	turn := metrics.Turn{}

	hint := s.lang.EnsureConsistency()
	t0 := time.Now()
	text, detected, err := s.router.Transcribe(ctx, audio, hint)
	turn.Transcribe = time.Since(t0)
	if err != nil {
		turn.Language = hint
		turn.ErrorKind = "transcription"
		s.collector.Record(turn)
		s.log.Error().Err(err).Msg("transcription failed")
		return TurnResult{Language: hint, Metrics: turn, Err: err}
	}
	if detected != "" {
		s.lang.SetDetected(detected)
	}

	lang := s.lang.EnsureConsistency()
	turn.Language = lang
	s.refreshPrompt(lang)
	convo := s.history.Context(s.prompts(lang))

	t0 = time.Now()
	response, err := s.router.Generate(ctx, text, convo, lang)
	turn.Generate = time.Since(t0)
	if err != nil {
		turn.ErrorKind = "generation"
		s.collector.Record(turn)
		s.log.Error().Err(err).Str("text", text).Msg("generation failed")
		return TurnResult{Text: text, Language: lang, Metrics: turn, Err: err}
	}

	s.history.AddTurn(text, response, lang)

	t0 = time.Now()
	out, err := s.router.Synthesize(ctx, response, lang)
	turn.Synthesize = time.Since(t0)
	turn.Total = time.Since(started)
	if err != nil {
		turn.ErrorKind = "synthesis"
		s.collector.Record(turn)
		s.log.Warn().Err(err).Msg("synthesis failed, degrading to text-only turn")
		return TurnResult{Text: text, Response: response, Language: lang, Metrics: turn, Err: err}
	}

	turn.Success = true
	s.collector.Record(turn)
	s.log.Info().
		Str("language", lang).
		Dur("total", turn.Total).
		Int("audio_bytes", len(out)).
		Msg("turn completed")
	return TurnResult{Text: text, Response: response, Audio: out, Language: lang, Metrics: turn}
}

// refreshPrompt rewrites the system prompt when the conversation
// language moved since the previous turn, unless an explicit prompt was
// installed.
func (s *Session) refreshPrompt(lang string) {
	s.mu.Lock()
	changed := lang != s.lastLanguage
	s.lastLanguage = lang
	custom := s.customPrompt
	s.mu.Unlock()
	if changed && !custom {
		s.log.Info().Str("language", lang).Msg("conversation language changed, refreshing system prompt")
		s.history.SetSystemPrompt(s.prompts(lang))
	}
}
