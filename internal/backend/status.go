package backend

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5tree/internal/handle"
)

// Status is the result of a backend call. Negative values are failures.
type Status int

const (
	StatusOK          Status = 0
	StatusFail        Status = -1
	StatusNotFound    Status = -2
	StatusExists      Status = -3
	StatusBadHandle   Status = -4
	StatusWrongKind   Status = -5
	StatusBadName     Status = -6
	StatusBadArgument Status = -7
	StatusStore       Status = -8
	StatusClosed      Status = -9
	StatusReadOnly    Status = -10
)

// OK reports whether s is not a failure.
func (s Status) OK() bool {
	return s >= 0
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFail:
		return "failure"
	case StatusNotFound:
		return "not found"
	case StatusExists:
		return "already exists"
	case StatusBadHandle:
		return "bad handle"
	case StatusWrongKind:
		return "wrong object kind"
	case StatusBadName:
		return "bad name"
	case StatusBadArgument:
		return "bad argument"
	case StatusStore:
		return "store error"
	case StatusClosed:
		return "backend closed"
	case StatusReadOnly:
		return "read-only"
	default:
		if s > 0 {
			return fmt.Sprintf("status(%d)", int(s))
		}
		return fmt.Sprintf("failure(%d)", int(s))
	}
}

// StatusError records a backend call that returned a failure status.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d (%s)", e.Op, int(e.Status), e.Status)
}

// Is matches another *StatusError with the same status, so callers can test
// errors.Is(err, &StatusError{Status: StatusNotFound}) without knowing the op.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return t.Status == e.Status && (t.Op == "" || t.Op == e.Op)
}

// Check returns a *StatusError when status is a failure.
func Check(op string, status Status) error {
	if status.OK() {
		return nil
	}
	return &StatusError{Op: op, Status: status}
}

// CheckID returns a *StatusError when id is not a valid handle. Calls that
// return handles encode their failure status as a negative id.
func CheckID(op string, id handle.ID) error {
	if id.Valid() {
		return nil
	}
	return &StatusError{Op: op, Status: Status(id)}
}

// IsStatus reports whether err carries the given status.
func IsStatus(err error, status Status) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
