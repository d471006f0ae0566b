package tutor

import (
	"errors"
	"fmt"
)

// ErrSendRejected is returned when a send-class operation (SendText,
// RequestHint, StartListening, FinalizeUtterance) is called while the session
// is not connected. This is a caller bug surfaced synchronously so the UI can
// guard against it.
var ErrSendRejected = errors.New("session not connected")

// ConnectionError means the transport could not establish or maintain a
// channel. Recoverable: the caller may retry Connect. Existing conversation
// history and hint counters are never affected.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
