package agent

import (
	"fmt"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/language"
)

// DefaultPromptBuilder renders the assistant system prompt for a
// language. Replies are kept short because they are spoken over a
// telephone call, not read.
func DefaultPromptBuilder(code string) string {
	name := language.Name(code)
	return fmt.Sprintf(
		"You are a helpful voice assistant on a phone call. "+
			"Respond only in %s. Keep answers short, conversational and "+
			"easy to speak aloud: one or two sentences, no lists, no "+
			"markdown, no emojis. If the caller switches language, keep "+
			"answering in %s until told otherwise.",
		name, name,
	)
}

var defaultGreetings = map[string]string{
	"te-IN": "Namaskaram! Nenu mee voice assistant ni. Ela sahayam cheyagalanu?",
	"hi-IN": "Namaste! Main aapki voice assistant hoon. Main aapki kaise madad kar sakti hoon?",
	"en-IN": "Hello! I am your voice assistant. How can I help you today?",
	"gu-IN": "Namaste! Hu tamari voice assistant chu. Hu tamari kevi rite madad kari saku?",
}

// DefaultGreeting returns the spoken greeting for a language, falling
// back to English for codes without one.
func DefaultGreeting(code string) string {
	if g, ok := defaultGreetings[code]; ok {
		return g
	}
	return defaultGreetings["en-IN"]
}
