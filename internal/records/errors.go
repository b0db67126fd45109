package records

import (
	"errors"
	"fmt"
)

// Error kinds reported by the service. Match them with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUsername  = errors.New("duplicate username")
	ErrDuplicateEmail     = errors.New("duplicate email")
	ErrDuplicateRollNo    = errors.New("duplicate roll number")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidLookup      = errors.New("invalid lookup")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotificationFailed = errors.New("notification failed")
)

// Error pairs an error kind with the message shown to the user.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, format string, args ...any) error {
	return &Error{Err: kind, Message: fmt.Sprintf(format, args...)}
}

// UserMessage returns the text to show for err, and false when err is not
// one of the service's error kinds.
func UserMessage(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Error(), true
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized access!", true
	case errors.Is(err, ErrNotFound):
		return "Record not found!", true
	}
	return "", false
}
