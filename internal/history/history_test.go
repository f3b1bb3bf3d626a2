package history

import (
	"fmt"
	"testing"
)

func TestAddTurnWindowCap(t *testing.T) {
	m := NewManager(2)
	for i := 0; i < 7; i++ {
		m.AddTurn(fmt.Sprintf("user-%d", i), fmt.Sprintf("bot-%d", i), "en-IN")
	}
	ctx := m.Context("")
	if len(ctx) != 4 {
		t.Fatalf("expected 4 retained entries, got %d", len(ctx))
	}
	// the window must hold the last two pairs in order
	want := []string{"user-5", "bot-5", "user-6", "bot-6"}
	for i, w := range want {
		if ctx[i].Content != w {
			t.Fatalf("entry %d: got %q want %q", i, ctx[i].Content, w)
		}
	}
}

func TestSystemPromptSurvivesTruncation(t *testing.T) {
	m := NewManager(1)
	m.SetSystemPrompt("be brief")
	for i := 0; i < 5; i++ {
		m.AddTurn("hi", "hello", "en-IN")
	}
	ctx := m.Context("")
	if len(ctx) != 3 {
		t.Fatalf("expected system + 2 entries, got %d", len(ctx))
	}
	if ctx[0].Role != RoleSystem || ctx[0].Content != "be brief" {
		t.Fatalf("system entry missing or not first: %+v", ctx[0])
	}
}

func TestContextFallbackSystemPrompt(t *testing.T) {
	m := NewManager(10)
	m.AddTurn("hi", "hello", "te-IN")
	ctx := m.Context("fallback prompt")
	if ctx[0].Role != RoleSystem || ctx[0].Content != "fallback prompt" {
		t.Fatalf("expected provided system prompt first, got %+v", ctx[0])
	}
	// stored prompt wins over the provided one
	m.SetSystemPrompt("stored")
	ctx = m.Context("fallback prompt")
	if ctx[0].Content != "stored" {
		t.Fatalf("expected stored prompt, got %q", ctx[0].Content)
	}
}

func TestContextDoesNotLeakMetadata(t *testing.T) {
	m := NewManager(10)
	m.AddTurn("hi", "hello", "hi-IN")
	for _, msg := range m.Context("") {
		if msg.Role == "" || msg.Content == "" {
			t.Fatalf("incomplete message: %+v", msg)
		}
	}
	// Message carries only role and content; compile-time shape check
	_ = Message{Role: RoleUser, Content: "x"}
}

func TestContextIdempotent(t *testing.T) {
	m := NewManager(3)
	m.SetSystemPrompt("sys")
	m.AddTurn("a", "b", "en-IN")
	first := m.Context("")
	second := m.Context("")
	if len(first) != len(second) {
		t.Fatalf("length changed between calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d changed between calls", i)
		}
	}
}

func TestClearHistoryKeepsSystem(t *testing.T) {
	m := NewManager(5)
	m.SetSystemPrompt("sys")
	m.AddTurn("a", "b", "en-IN")
	m.ClearHistory()
	ctx := m.Context("")
	if len(ctx) != 1 || ctx[0].Role != RoleSystem {
		t.Fatalf("expected only system entry after clear, got %+v", ctx)
	}
	if m.TurnCount() != 0 {
		t.Fatalf("expected zero turns after clear")
	}
}

func TestTurnCountAndLen(t *testing.T) {
	m := NewManager(10)
	if m.Len() != 0 {
		t.Fatalf("expected empty manager")
	}
	m.SetSystemPrompt("sys")
	m.AddTurn("a", "b", "en-IN")
	m.AddTurn("c", "d", "en-IN")
	if m.TurnCount() != 2 {
		t.Fatalf("turn count: got %d want 2", m.TurnCount())
	}
	if m.Len() != 5 {
		t.Fatalf("len: got %d want 5", m.Len())
	}
}

func TestRecent(t *testing.T) {
	m := NewManager(10)
	m.AddTurn("a", "b", "en-IN")
	m.AddTurn("c", "d", "te-IN")
	got := m.Recent(1)
	if len(got) != 2 || got[0].Content != "c" || got[1].Content != "d" {
		t.Fatalf("unexpected recent entries: %+v", got)
	}
	if got[0].Language != "te-IN" {
		t.Fatalf("language metadata missing on entry")
	}
}
