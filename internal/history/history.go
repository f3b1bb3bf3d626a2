// Package history keeps the bounded conversation memory for one call and
// renders it into the message sequence the language model consumes.
package history

import (
	"sync"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the role/content pair handed to the LLM. Internal bookkeeping
// fields (language, timestamps) never leak through it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entry is one stored conversation message with per-turn metadata.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager maintains a sliding window of conversation turns. The system
// prompt is held apart from the window so truncation can never evict it.
type Manager struct {
	mu         sync.Mutex
	maxHistory int
	system     string
	hasSystem  bool
	entries    []Entry
}

// NewManager returns a Manager keeping at most maxHistory user/assistant
// turn pairs (so 2*maxHistory entries beyond the system prompt).
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &Manager{maxHistory: maxHistory}
}

// AddTurn appends one user entry and one assistant entry, both stamped with
// the language the turn was processed in, then enforces the window cap.
func (m *Manager) AddTurn(userInput, assistantResponse, language string) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries,
		Entry{Role: RoleUser, Content: userInput, Language: language, Timestamp: now},
		Entry{Role: RoleAssistant, Content: assistantResponse, Language: language, Timestamp: now},
	)
	if limit := m.maxHistory * 2; len(m.entries) > limit {
		// drop the oldest turns wholesale
		m.entries = append(m.entries[:0], m.entries[len(m.entries)-limit:]...)
	}
}

// SetSystemPrompt stores or replaces the single system entry.
func (m *Manager) SetSystemPrompt(prompt string) {
	m.mu.Lock()
	m.system = prompt
	m.hasSystem = true
	m.mu.Unlock()
}

// Context renders the history for the LLM: the stored system prompt (or
// systemPrompt when none is stored) followed by all turns in order.
func (m *Manager) Context(systemPrompt string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, len(m.entries)+1)
	switch {
	case m.hasSystem:
		out = append(out, Message{Role: RoleSystem, Content: m.system})
	case systemPrompt != "":
		out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	}
	for _, e := range m.entries {
		out = append(out, Message{Role: e.Role, Content: e.Content})
	}
	return out
}

// ClearHistory removes every turn; the system prompt is retained.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// TurnCount reports the number of completed user/assistant pairs retained.
func (m *Manager) TurnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Role == RoleUser {
			n++
		}
	}
	return n
}

// Len reports the number of stored entries including the system prompt.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if m.hasSystem {
		n++
	}
	return n
}

// Recent returns up to n of the most recent turn pairs with metadata.
func (m *Manager) Recent(n int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		return nil
	}
	k := n * 2
	if k > len(m.entries) {
		k = len(m.entries)
	}
	out := make([]Entry, k)
	copy(out, m.entries[len(m.entries)-k:])
	return out
}
