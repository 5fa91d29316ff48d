package enhance

import "fmt"

// RemoteAuthError means the enhancement service rejected our credentials
// or the token endpoint was unreachable.
type RemoteAuthError struct {
	StatusCode int
	Err        error
}

func (e *RemoteAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enhancement auth failed: %v", e.Err)
	}
	return fmt.Sprintf("enhancement auth failed: status %d", e.StatusCode)
}

func (e *RemoteAuthError) Unwrap() error { return e.Err }

// RemoteJobError covers protocol failures after authentication: a
// rejected submission, a job the service reports as Failed, or a
// malformed response.
type RemoteJobError struct {
	Stage      string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteJobError) Error() string {
	msg := fmt.Sprintf("enhancement %s failed", e.Stage)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteJobError) Unwrap() error { return e.Err }

// RemoteTimeoutError means a job did not reach a terminal status within
// the polling budget.
type RemoteTimeoutError struct {
	JobID    string
	Attempts int
}

func (e *RemoteTimeoutError) Error() string {
	return fmt.Sprintf("enhancement job %s still pending after %d polls", e.JobID, e.Attempts)
}
