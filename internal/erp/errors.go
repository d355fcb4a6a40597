package erp

import (
	"errors"
	"fmt"
)

// Outcome tags the result of one HTTP attempt against the ERP.
type Outcome int

const (
	// OK means a 2xx response was received.
	OK Outcome = iota
	// Transient covers transport failures: timeouts, resets, DNS. They are retried.
	Transient
	// Permanent means the ERP answered with a non-2xx status or a body missing
	// the expected id. It is never retried.
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is returned by every client call that did not end in OK.
type Error struct {
	Kind     Outcome
	Op       string
	Status   int
	Body     string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Permanent:
		if e.Status > 0 {
			return fmt.Sprintf("erp %s: status %d: %s", e.Op, e.Status, e.Body)
		}
		return fmt.Sprintf("erp %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("erp %s: transport failure after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsPermanent reports whether err is an ERP rejection.
func IsPermanent(err error) bool {
	var erpErr *Error
	return errors.As(err, &erpErr) && erpErr.Kind == Permanent
}

// IsTransient reports whether err is an ERP transport failure that survived
// every retry.
func IsTransient(err error) bool {
	var erpErr *Error
	return errors.As(err, &erpErr) && erpErr.Kind == Transient
}
