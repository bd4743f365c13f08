package types

import "fmt"

// Status is the engine-wide result/error kind. It implements error so
// it can be returned and compared directly; it has no Is method, so
// errors.Is matches only a Status with the same Code and Msg.
type Status struct {
	Code Code
	Msg  string
}

// Code enumerates the result kinds used throughout the engine (§7).
type Code int

const (
	// CodeOK indicates success.
	CodeOK Code = iota
	// CodeContinue indicates partial progress; the caller should call
	// again.
	CodeContinue
	// CodeNoData indicates a drain loop has nothing left to deliver.
	CodeNoData
	// CodeBadConf indicates the static graph checker rejected the graph.
	CodeBadConf
	// CodeInvalidState indicates malformed lineage discovered at
	// runtime (e.g. a buffer on an already-ended stream).
	CodeInvalidState
	// CodeAborted indicates the owning session was aborted.
	CodeAborted
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeContinue:
		return "CONTINUE"
	case CodeNoData:
		return "NODATA"
	case CodeBadConf:
		return "BADCONF"
	case CodeInvalidState:
		return "INVALID_STATE"
	case CodeAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// NewStatus builds a Status with a message.
func NewStatus(code Code, msg string) Status {
	return Status{Code: code, Msg: msg}
}

// OK reports whether the status represents success.
func (s Status) OK() bool {
	return s.Code == CodeOK
}

func (s Status) Error() string {
	if s.Msg == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Msg)
}

// StatusOK is the shared success value.
var StatusOK = Status{Code: CodeOK}

// StatusNoData is the shared drain-complete value.
var StatusNoData = Status{Code: CodeNoData}

// StatusContinue is the shared partial-progress value.
var StatusContinue = Status{Code: CodeContinue}

// BadConf builds a BADCONF status carrying a diagnostic naming the
// offending node(s), per spec.md §4.6's failure mode.
func BadConf(format string, args ...interface{}) Status {
	return NewStatus(CodeBadConf, fmt.Sprintf(format, args...))
}

// InvalidState builds an INVALID_STATE status.
func InvalidState(format string, args ...interface{}) Status {
	return NewStatus(CodeInvalidState, fmt.Sprintf(format, args...))
}
