package orchestrator

import (
	"fmt"
	"time"
)

// ValidationError reports a bad or missing parameter. It is always raised
// before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError means the backend rejected the job at creation. No Job
// exists when this is returned, and the submission is never retried.
type SubmissionError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s submission failed: %s", e.Backend, e.Detail)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// JobFailedError means the backend reported a terminal error state, or
// polling exhausted its transient-error retries. Detail preserves the
// backend-supplied message verbatim.
type JobFailedError struct {
	JobID  string
	Detail string
	Err    error
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Detail)
}

func (e *JobFailedError) Unwrap() error { return e.Err }

// JobTimedOutError means the local deadline elapsed before the backend
// reached a terminal state. The remote job is not cancelled: this error
// means we stopped waiting, not that the backend stopped working.
type JobTimedOutError struct {
	JobID  string
	Waited time.Duration
}

func (e *JobTimedOutError) Error() string {
	return fmt.Sprintf("job %s timed out after %s", e.JobID, e.Waited.Round(time.Millisecond))
}

// FetchError means one or more outputs of a succeeded job could not be
// downloaded. Succeeded maps output names to the local paths that were saved;
// Failed maps the remaining output names to their error text, so the caller
// can decide whether to keep partial results.
type FetchError struct {
	JobID     string
	Succeeded map[string]string
	Failed    map[string]string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch incomplete for job %s: %d output(s) failed, %d saved",
		e.JobID, len(e.Failed), len(e.Succeeded))
}
