package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage rejects a submission with neither text nor an image.
	ErrEmptyMessage = errors.New("message text or image required")
	// ErrBusy rejects a submission while another exchange is streaming.
	ErrBusy = errors.New("an exchange is already streaming")
	// ErrTruncated reports a stream that closed without a done or error event.
	ErrTruncated = errors.New("stream ended without a terminal event")
	// ErrCanceled is the outcome of an exchange stopped by Cancel. It is only
	// reported through Handle.Err and never passed to OnError.
	ErrCanceled = errors.New("exchange canceled")
	// ErrLineTooLong marks a stream line longer than MaxLineSize.
	ErrLineTooLong = errors.New("line exceeds maximum size")
)

// TransportError covers failures to reach the chat endpoint or to keep
// reading from it, including non-2xx responses.
type TransportError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("chat endpoint returned %d", e.StatusCode)
	case e.Err != nil:
		return "chat transport: " + e.Err.Error()
	default:
		return "chat transport failure"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError carries the message of an explicit error event.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ProtocolError describes a data line whose payload could not be decoded.
// The stream consumer skips such lines.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed event %q: %v", e.Line, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
