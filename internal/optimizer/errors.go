package optimizer

import "fmt"

// WorkerError reports a computing worker that terminated abnormally before
// producing a result. It is delivered to every waiter of the descriptor.
type WorkerError struct {
	Reason any
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker terminated: %v", e.Reason)
}

// AcquireError reports the admission limiter becoming unusable.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type AcquireError struct {
	cause error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("admission limiter: %v", e.cause)
}

func (e *AcquireError) Unwrap() error { return e.cause }
