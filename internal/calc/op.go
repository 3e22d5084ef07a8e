package calc

import "strings"

// Op is the closed set of accumulator actions the remote service can invoke.
type Op int

const (
	OpUnknown Op = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpReset
)

// ParseOp maps the wire enum {ADD, SUBTRACT, MULTIPLY, DIVIDE, RESET} to an Op.
// Unrecognized names map to OpUnknown rather than failing the session.
func ParseOp(name string) Op {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ADD":
		return OpAdd
	case "SUBTRACT":
		return OpSubtract
	case "MULTIPLY":
		return OpMultiply
	case "DIVIDE":
		return OpDivide
	case "RESET":
		return OpReset
	default:
		return OpUnknown
	}
}

// String returns the wire name for the operation.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "ADD"
	case OpSubtract:
		return "SUBTRACT"
	case OpMultiply:
		return "MULTIPLY"
	case OpDivide:
		return "DIVIDE"
	case OpReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// Operation is one recognized accumulator action. Immutable once constructed.
// Value is meaningless for OpReset and OpUnknown.
type Operation struct {
	Op    Op
	Value float64
}
