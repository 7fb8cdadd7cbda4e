package rdma

import "fmt"

// SetupError reports a connection-establishment failure and the setup
// stage it happened at. Setup failures are fatal to the session; there
// is no retry.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("connection setup failed at %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// CompletionError reports a work completion that finished with a
// non-success status.
type CompletionError struct {
	Status uint32
	Desc   string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("work completion failed: %s (status %d)", e.Desc, e.Status)
}
