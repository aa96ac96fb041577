package orchestrator

import (
	"time"

	"github.com/audiobridge/api/internal/model"
)

// Job is one remote processing request, exclusively owned by the orchestrator
// invocation that created it. It is created by a successful submission,
// mutated only by the poller, and discarded when the invocation returns.
// There is no cross-call job registry.
//
// Invariants: ID never changes after assignment; Outputs stays empty until
// terminal success; Error stays empty until terminal failure; once the state
// is terminal no further polling happens.
type Job struct {
	ID          string
	Kind        model.JobKind
	Parameters  map[string]string
	State       model.JobState
	SubmittedAt time.Time
	Deadline    time.Time
	Outputs     map[string]string
	Error       string
}

func newJob(id string, kind model.JobKind, params map[string]string, deadline time.Duration) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Kind:        kind,
		Parameters:  params,
		State:       model.JobStateSubmitted,
		SubmittedAt: now,
		Deadline:    now.Add(deadline),
	}
}
