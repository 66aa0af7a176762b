package fmi

// Status is the ordered outcome code of an adapter call.
type Status int

const (
	OK Status = iota
	Warning
	Discard
	Error
	Fatal
	Pending
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "Warning"
	case Discard:
		return "Discard"
	case Error:
		return "Error"
	case Fatal:
		return "Fatal"
	case Pending:
		return "Pending"
	default:
		return "?"
	}
}

// Failed reports whether the call did not complete: anything above Warning.
func (s Status) Failed() bool {
	return s > Warning && s != Pending
}

// Unrecoverable reports Error or Fatal. The instance must not be driven
// further.
func (s Status) Unrecoverable() bool {
	return s == Error || s == Fatal
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b > a && b != Pending {
		return b
	}
	return a
}
