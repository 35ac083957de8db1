package queue

import "errors"

var (
	// ErrJobNotFound is returned when a job ID is unknown to the backend.
	ErrJobNotFound = errors.New("job not found")

	// ErrLeaseLost is returned when a worker settles a job whose lease
	// expired and was handed to another worker.
	ErrLeaseLost = errors.New("job lease lost")

	// ErrInvalidJob is returned for jobs missing a queue, name or ID.
	ErrInvalidJob = errors.New("invalid job")

	// ErrStalled is reported for jobs the reaper dead-letters because their
	// workers kept losing the lease.
	ErrStalled = errors.New("job stalled")
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker dead-letters the job immediately instead
// of retrying it. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
