// Package usage records the token consumption of the inference calls made
// while serving one request, and prices it.
package usage

import "sync"

// TokenCount holds input and output token counts.
type TokenCount struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Plus returns the element-wise sum of tc and o.
func (tc TokenCount) Plus(o TokenCount) TokenCount {
	return TokenCount{
		InputTokens:  tc.InputTokens + o.InputTokens,
		OutputTokens: tc.OutputTokens + o.OutputTokens,
	}
}

// Call is one recorded inference call.
type Call struct {
	Type      string // "invoke" or "stream".
	Tokens    TokenCount
	Estimated bool // Counts were estimated because the provider reported none.
}

// Summary aggregates the calls of a Tracker.
type Summary struct {
	Calls     int
	Estimated int // Calls whose counts were estimated.
	Tokens    TokenCount
}

// Tracker collects the calls of one request. It is safe for concurrent use;
// the zero value is ready.
type Tracker struct {
	mu    sync.Mutex
	calls []Call
}

// Record appends c.
func (t *Tracker) Record(c Call) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, c)
}

// Calls returns a copy of the recorded calls in order.
func (t *Tracker) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Call, len(t.calls))
	copy(out, t.calls)

	return out
}

// Summary totals the recorded calls.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{Calls: len(t.calls)}
	for _, c := range t.calls {
		s.Tokens = s.Tokens.Plus(c.Tokens)
		if c.Estimated {
			s.Estimated++
		}
	}

	return s
}
