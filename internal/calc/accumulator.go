package calc

import "sync"

// Entry records one applied operation together with the total after it.
type Entry struct {
	Operation Operation
	Total     float64
}

// Accumulator holds the running total and the log of applied operations.
// Apply owns all numeric validation: divide-by-zero and unknown operations
// leave the total untouched and are not recorded in the history.
type Accumulator struct {
	mu      sync.Mutex
	total   float64
	history []Entry
}

// NewAccumulator returns an accumulator starting at zero.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Apply updates the total with op and returns the new total.
func (a *Accumulator) Apply(op Operation) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch op.Op {
	case OpAdd:
		a.total += op.Value
	case OpSubtract:
		a.total -= op.Value
	case OpMultiply:
		a.total *= op.Value
	case OpDivide:
		if op.Value == 0 {
			return a.total
		}
		a.total /= op.Value
	case OpReset:
		a.total = 0
	default:
		return a.total
	}
	a.history = append(a.history, Entry{Operation: op, Total: a.total})
	return a.total
}

// Total returns the current running total.
func (a *Accumulator) Total() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// History returns a copy of the applied-operation log.
func (a *Accumulator) History() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.history))
	copy(out, a.history)
	return out
}
