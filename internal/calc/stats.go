package calc

import "math"

// Stats summarizes the operand values of applied operations.
type Stats struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// signedValue assigns a sign to an operand for the "list of values" view:
// subtract operands count negatively, everything else counts as written.
// Reset contributes nothing.
func signedValue(op Operation) (float64, bool) {
	switch op.Op {
	case OpAdd, OpMultiply, OpDivide:
		return op.Value, true
	case OpSubtract:
		return -op.Value, true
	default:
		return 0, false
	}
}

// Summarize computes descriptive statistics over the history's operand values.
func Summarize(history []Entry) Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, e := range history {
		v, ok := signedValue(e.Operation)
		if !ok {
			continue
		}
		s.Count++
		s.Sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if s.Count == 0 {
		return Stats{}
	}
	s.Mean = s.Sum / float64(s.Count)
	return s
}
