// Package metrics records per-turn pipeline latency and outcome. Each
// session owns a Collector; aggregate counters are also exported to
// Prometheus for process-wide observability.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Turn holds the measurements of one completed ProcessTurn call, failed
// ones included.
type Turn struct {
	Transcribe time.Duration
	Generate   time.Duration
	Synthesize time.Duration
	Total      time.Duration
	Language   string
	Success    bool
	ErrorKind  string
	Timestamp  time.Time
}

// Averages aggregates mean stage latencies.
type Averages struct {
	Transcribe time.Duration
	Generate   time.Duration
	Synthesize time.Duration
	Total      time.Duration
}

// LanguageStats aggregates turns processed in one language.
type LanguageStats struct {
	Count    int
	Averages Averages
}

// Collector is an append-only, bounded store of turn metrics for one
// session. Recording also feeds the process-wide Prometheus collectors.
type Collector struct {
	mu    sync.Mutex
	max   int
	turns []Turn
}

// NewCollector keeps at most maxTurns entries, dropping the oldest.
func NewCollector(maxTurns int) *Collector {
	if maxTurns <= 0 {
		maxTurns = 1000
	}
	return &Collector{max: maxTurns}
}

// Record appends one turn. Total is derived from the stages when unset.
func (c *Collector) Record(t Turn) {
	if t.Total == 0 {
		t.Total = t.Transcribe + t.Generate + t.Synthesize
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.turns = append(c.turns, t)
	if len(c.turns) > c.max {
		c.turns = append(c.turns[:0], c.turns[len(c.turns)-c.max:]...)
	}
	c.mu.Unlock()

	observeTurn(t)
}

// TurnCount reports how many turns are currently retained.
func (c *Collector) TurnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// AverageLatencies reports mean stage latencies across retained turns.
func (c *Collector) AverageLatencies() Averages {
	c.mu.Lock()
	defer c.mu.Unlock()
	return average(c.turns)
}

// SuccessRate reports the fraction of successful turns (1.0 when empty).
func (c *Collector) SuccessRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.turns) == 0 {
		return 1.0
	}
	ok := 0
	for _, t := range c.turns {
		if t.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(c.turns))
}

// ByLanguage groups retained turns by processing language.
func (c *Collector) ByLanguage() map[string]LanguageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	grouped := map[string][]Turn{}
	for _, t := range c.turns {
		grouped[t.Language] = append(grouped[t.Language], t)
	}
	out := make(map[string]LanguageStats, len(grouped))
	for lang, turns := range grouped {
		out[lang] = LanguageStats{Count: len(turns), Averages: average(turns)}
	}
	return out
}

// ErrorCounts tallies failed turns by error kind.
func (c *Collector) ErrorCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]int{}
	for _, t := range c.turns {
		if !t.Success && t.ErrorKind != "" {
			out[t.ErrorKind]++
		}
	}
	return out
}

// Report renders a human-readable summary for logs and debug endpoints.
func (c *Collector) Report() string {
	total := c.TurnCount()
	if total == 0 {
		return "no metrics recorded yet"
	}

	var b strings.Builder
	avg := c.AverageLatencies()
	fmt.Fprintf(&b, "turns=%d success=%.1f%%\n", total, 100*c.SuccessRate())
	fmt.Fprintf(&b, "avg: transcribe=%s generate=%s synthesize=%s total=%s\n",
		avg.Transcribe.Round(time.Millisecond), avg.Generate.Round(time.Millisecond),
		avg.Synthesize.Round(time.Millisecond), avg.Total.Round(time.Millisecond))

	byLang := c.ByLanguage()
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		st := byLang[lang]
		fmt.Fprintf(&b, "%s: turns=%d avg_total=%s\n", lang, st.Count, st.Averages.Total.Round(time.Millisecond))
	}

	errs := c.ErrorCounts()
	kinds := make([]string, 0, len(errs))
	for k := range errs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "errors.%s=%d\n", k, errs[k])
	}
	return b.String()
}

// Reset discards all retained turns.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}

func average(turns []Turn) Averages {
	if len(turns) == 0 {
		return Averages{}
	}
	var a Averages
	for _, t := range turns {
		a.Transcribe += t.Transcribe
		a.Generate += t.Generate
		a.Synthesize += t.Synthesize
		a.Total += t.Total
	}
	n := time.Duration(len(turns))
	a.Transcribe /= n
	a.Generate /= n
	a.Synthesize /= n
	a.Total /= n
	return a
}
