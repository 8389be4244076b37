package query

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned when a selector resolves to an engine
	// that lacks the requested capability.
	ErrNotSupported = errors.New("engine does not support this operation")
)

// InvalidNameError reports an engine name that fails the naming rule:
// one or more ASCII letters, nothing else.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid query engine name %q: names may contain only letters", e.Name)
}

// DuplicateNameError reports a registration against a name that is
// already taken, by a built-in or a custom engine.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("query engine %q is already registered", e.Name)
}

// UnknownEngineError reports a selector whose engine prefix matches no
// registered engine.
type UnknownEngineError struct {
	Engine string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown query engine %q", e.Engine)
}

// RemoteError wraps a failure reported by the target side of an
// executor, carrying the remote error code when one was provided.
type RemoteError struct {
	Code    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("remote error [%s]: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError creates a RemoteError without an underlying cause.
func NewRemoteError(code, message string) *RemoteError {
	return &RemoteError{Code: code, Message: message}
}

// WrapRemoteError wraps an existing error with remote-failure context.
func WrapRemoteError(code, message string, err error) *RemoteError {
	return &RemoteError{Code: code, Message: message, Err: err}
}

// IsRemoteError reports whether err originated on the target side,
// extracting the remote code if so.
func IsRemoteError(err error) (string, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Code, true
	}
	return "", false
}
