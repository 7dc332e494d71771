package rcon

import (
	"context"
	"errors"
	"net"
	"syscall"
)

type Kind int

const (
	// KindTransport covers connection refused, reset, and DNS failures.
	// Retried up to the configured bound.
	KindTransport Kind = iota + 1
	// KindTimeout means no response arrived within the read deadline.
	// Retried up to the configured bound.
	KindTimeout
	// KindAuthFailed means the server rejected the password. Never retried.
	KindAuthFailed
	// KindMalformedPacket is a framing violation, which indicates a protocol
	// or version mismatch rather than transience. Never retried.
	KindMalformedPacket
)

// Error is the single terminal error type the client surfaces. Detail carries
// the full diagnostic for logs; UserMessage is safe to show an operator.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "rcon: " + e.Detail
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether a retry could plausibly succeed.
func (e *Error) Transient() bool {
	return e.Kind == KindTransport || e.Kind == KindTimeout
}

func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindAuthFailed:
		return "Wrong RCON password"
	case KindTimeout:
		return "Server did not respond in time"
	case KindMalformedPacket:
		return "Server sent an unexpected protocol response"
	default:
		return "Could not connect to server"
	}
}

// classify maps transport-level errors onto the taxonomy. Anything not
// recognizably a timeout is treated as a transport failure.
func classify(err error) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Detail: "operation canceled", Err: err}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Detail: "read deadline exceeded", Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindTransport, Detail: "DNS lookup failed", Err: err}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &Error{Kind: KindTransport, Detail: "connection refused", Err: err}
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return &Error{Kind: KindTransport, Detail: "connection reset", Err: err}
	}

	return &Error{Kind: KindTransport, Detail: "transport failure", Err: err}
}
