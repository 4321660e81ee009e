package http

import (
	"context"
	"errors"
	"net"
	"os"
)

// Kind classifies every error returned by the client. Kind values are
// errors themselves so they could be matched with [errors.Is]:
//
//	if errors.Is(err, http.ErrTimeout) { ... }
type Kind uint8

const (
	KindRequest Kind = iota + 1 // invalid request: bad URL, header, or body framing
	KindConnect                 // DNS or TCP failure
	KindTLS
	KindProtocol // malformed status line, header or body framing on the wire
	KindTimeout
	KindUnsupportedScheme
	KindPoolExhausted
	KindCanceled
)

var kindNames = [...]string{
	KindRequest:           "invalid request",
	KindConnect:           "connect error",
	KindTLS:               "tls error",
	KindProtocol:          "protocol error",
	KindTimeout:           "timeout",
	KindUnsupportedScheme: "unsupported scheme",
	KindPoolExhausted:     "pool exhausted",
	KindCanceled:          "canceled",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown error"
}

func (k Kind) Error() string { return k.String() }

var (
	ErrRequest           error = KindRequest
	ErrConnect           error = KindConnect
	ErrTLS               error = KindTLS
	ErrProtocol          error = KindProtocol
	ErrTimeout           error = KindTimeout
	ErrUnsupportedScheme error = KindUnsupportedScheme
	ErrPoolExhausted     error = KindPoolExhausted
	ErrCanceled          error = KindCanceled
)

// Phase is a state of the per-request state machine:
//
//	Resolving -> Connecting -> Writing -> ReadingHeaders -> ReadingBody -> Done
//
// with Failed reachable from any state before Done.
type Phase uint8

const (
	PhaseResolving Phase = iota
	PhaseConnecting
	PhaseWriting
	PhaseReadingHeaders
	PhaseReadingBody
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseResolving:      "resolving",
	PhaseConnecting:     "connecting",
	PhaseWriting:        "writing",
	PhaseReadingHeaders: "reading headers",
	PhaseReadingBody:    "reading body",
	PhaseDone:           "done",
	PhaseFailed:         "failed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Error is the only error type surfaced by the client. It always names
// the kind of failure and the endpoint involved.
type Error struct {
	Kind     Kind
	Endpoint Endpoint
	Phase    Phase
	Err      error
}

func (e *Error) Error() string {
	msg := "h1client: " + e.Kind.String()
	if e.Endpoint != (Endpoint{}) {
		msg += " " + e.Endpoint.String()
	}
	msg += " while " + e.Phase.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
