package coach

import "errors"

var (
	// ErrStaleForm is returned when a submission carries a form generation
	// that has already been superseded.
	ErrStaleForm = errors.New("form is stale, reload and resubmit")

	// ErrSubmissionInProgress is returned when another submission for the
	// same user has not finished yet.
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
)

// ValidationError rejects a submission before anything is persisted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

// PersistenceError reports that the store refused a save. Msg is the
// store's own message.
type PersistenceError struct {
	Msg string
	Err error
}

func (e *PersistenceError) Error() string { return e.Msg }

func (e *PersistenceError) Unwrap() error { return e.Err }
