package agent

import (
	"strings"
	"testing"
)

func TestDefaultPromptBuilderNamesLanguage(t *testing.T) {
	p := DefaultPromptBuilder("hi-IN")
	if !strings.Contains(p, "Hindi") {
		t.Fatalf("prompt does not name the language: %q", p)
	}
}

func TestDefaultGreeting(t *testing.T) {
	for _, code := range []string{"te-IN", "hi-IN", "en-IN", "gu-IN"} {
		if DefaultGreeting(code) == "" {
			t.Fatalf("no greeting for %s", code)
		}
	}
	if got := DefaultGreeting("fr-FR"); got != DefaultGreeting("en-IN") {
		t.Fatalf("unknown code should fall back to English, got %q", got)
	}
}
