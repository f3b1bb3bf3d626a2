package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/history"
)

type fakeSTT struct {
	calls    int
	failures int // fail the first N calls
	text     string
	lang     string
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, hint string) (string, string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", "", errors.New("stt unavailable")
	}
	return f.text, f.lang, nil
}

type fakeLLM struct {
	calls int
	reply string
	err   error
}

func (f *fakeLLM) Generate(ctx context.Context, messages []history.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeTTS struct {
	calls    int
	failures int
	audio    []byte
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("tts unavailable")
	}
	return f.audio, nil
}

func testSettings() Settings {
	return Settings{RetryCount: 2, RetryDelay: time.Millisecond, CallTimeout: time.Second}
}

func TestTranscribeRetriesThenSucceeds(t *testing.T) {
	stt := &fakeSTT{failures: 1, text: "నమస్కారం", lang: "te-IN"}
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, testSettings(), zerolog.Nop())

	text, lang, err := r.Transcribe(context.Background(), []byte{1}, "te-IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "నమస్కారం" || lang != "te-IN" {
		t.Fatalf("unexpected result: %q %q", text, lang)
	}
	if stt.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", stt.calls)
	}
}

func TestTranscribeExhaustsRetries(t *testing.T) {
	stt := &fakeSTT{failures: 10}
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, testSettings(), zerolog.Nop())

	_, _, err := r.Transcribe(context.Background(), []byte{1}, "")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
	if stt.calls != 2 {
		t.Fatalf("expected exactly RetryCount attempts, got %d", stt.calls)
	}
}

func TestTranscribeBlankTextIsFailure(t *testing.T) {
	stt := &fakeSTT{text: "   "}
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, testSettings(), zerolog.Nop())

	_, _, err := r.Transcribe(context.Background(), []byte{1}, "")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription for blank transcript, got %v", err)
	}
	if stt.calls != 2 {
		t.Fatalf("blank transcript must still be retried, got %d attempts", stt.calls)
	}
}

func TestGenerateSingleAttempt(t *testing.T) {
	llm := &fakeLLM{err: errors.New("llm down")}
	r := NewRouter(&fakeSTT{}, llm, &fakeTTS{}, testSettings(), zerolog.Nop())

	_, err := r.Generate(context.Background(), "hi", nil, "en-IN")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("generation must never retry, got %d attempts", llm.calls)
	}
}

func TestGenerateAppendsUserMessage(t *testing.T) {
	var seen []history.Message
	llm := &fakeLLM{reply: "hello"}
	r := NewRouter(&fakeSTT{}, generatorFunc(func(ctx context.Context, msgs []history.Message) (string, error) {
		seen = msgs
		return llm.Generate(ctx, msgs)
	}), &fakeTTS{}, testSettings(), zerolog.Nop())

	convo := []history.Message{
		{Role: history.RoleSystem, Content: "sys"},
		{Role: history.RoleUser, Content: "earlier"},
		{Role: history.RoleAssistant, Content: "reply"},
	}
	if _, err := r.Generate(context.Background(), "now", convo, "en-IN"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected context plus user message, got %d messages", len(seen))
	}
	last := seen[len(seen)-1]
	if last.Role != history.RoleUser || last.Content != "now" {
		t.Fatalf("last message must be the current user text, got %+v", last)
	}
	// the caller's slice must not be mutated
	if len(convo) != 3 {
		t.Fatalf("input context mutated: %d entries", len(convo))
	}
}

type generatorFunc func(context.Context, []history.Message) (string, error)

func (f generatorFunc) Generate(ctx context.Context, m []history.Message) (string, error) {
	return f(ctx, m)
}

func TestGenerateEmptyReplyIsError(t *testing.T) {
	r := NewRouter(&fakeSTT{}, &fakeLLM{reply: "  "}, &fakeTTS{}, testSettings(), zerolog.Nop())
	if _, err := r.Generate(context.Background(), "hi", nil, "en-IN"); !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration for empty reply, got %v", err)
	}
}

func TestSynthesizeRetriesAndEmptyAudioFails(t *testing.T) {
	tts := &fakeTTS{failures: 1, audio: []byte{0xFF, 0x7F}}
	r := NewRouter(&fakeSTT{}, &fakeLLM{}, tts, testSettings(), zerolog.Nop())
	audio, err := r.Synthesize(context.Background(), "hello", "en-IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio) != 2 || tts.calls != 2 {
		t.Fatalf("unexpected result: %d bytes after %d calls", len(audio), tts.calls)
	}

	empty := &fakeTTS{}
	r = NewRouter(&fakeSTT{}, &fakeLLM{}, empty, testSettings(), zerolog.Nop())
	if _, err := r.Synthesize(context.Background(), "hello", "en-IN"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis for empty audio, got %v", err)
	}
}

func TestCircuitOpenShortCircuitsRetries(t *testing.T) {
	stt := &fakeSTT{failures: 100}
	settings := testSettings()
	settings.Breakers = &BreakerSettings{FailureThreshold: 2, Timeout: time.Hour}
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, settings, zerolog.Nop())

	// first call burns two attempts and trips the breaker
	_, _, err := r.Transcribe(context.Background(), []byte{1}, "")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
	if stt.calls != 2 {
		t.Fatalf("expected 2 attempts before the circuit opened, got %d", stt.calls)
	}

	// second call must fail fast: no provider attempt, no retry delay
	_, _, err = r.Transcribe(context.Background(), []byte{1}, "")
	if !errors.Is(err, ErrTranscription) || !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected transcription error wrapping ErrCircuitOpen, got %v", err)
	}
	if stt.calls != 2 {
		t.Fatalf("provider invoked while circuit open: %d calls", stt.calls)
	}
}

func TestTornDownSessionSkipsRetryDelay(t *testing.T) {
	stt := &fakeSTT{failures: 100}
	settings := Settings{RetryCount: 2, RetryDelay: 2 * time.Second, CallTimeout: time.Second}
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, settings, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, _, err := r.Transcribe(ctx, []byte{1}, "")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("retry delay ignored session teardown: took %s", elapsed)
	}
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected wrapped transcription error, got %v", err)
	}
	if stt.calls != 1 {
		t.Fatalf("no second attempt expected after teardown, got %d calls", stt.calls)
	}
}

type transcriberFunc func(context.Context, []byte, string) (string, string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, audio []byte, hint string) (string, string, error) {
	return f(ctx, audio, hint)
}

func TestInFlightCallSurvivesTeardown(t *testing.T) {
	// the provider honors its context; the attempt must still complete
	// because attempts run on their own timeout, not the session context
	stt := transcriberFunc(func(ctx context.Context, _ []byte, _ string) (string, string, error) {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		return "hello", "en-IN", nil
	})
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, testSettings(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	text, _, err := r.Transcribe(ctx, []byte{1}, "")
	if err != nil {
		t.Fatalf("cancelled session must not abort the attempt itself: %v", err)
	}
	if text != "hello" {
		t.Fatalf("transcript %q", text)
	}
}

func TestRetryDelayIsCancellable(t *testing.T) {
	stt := &fakeSTT{failures: 100}
	settings := Settings{RetryCount: 2, RetryDelay: time.Minute, CallTimeout: time.Second}
	r := NewRouter(stt, &fakeLLM{}, &fakeTTS{}, settings, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := r.Transcribe(ctx, []byte{1}, "")
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, ErrTranscription) {
			t.Fatalf("expected wrapped transcription error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("retry delay ignored cancellation")
	}
}
