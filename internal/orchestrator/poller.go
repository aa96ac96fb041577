package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/telemetry"
)

const (
	defaultTransientRetries = 3
	defaultRetryBackoff     = 500 * time.Millisecond
)

// Snapshot is one observation of a remote job, already normalized from the
// backend's raw status vocabulary onto the shared state model. Outputs is set
// only with a succeeded state; Detail carries the backend's error message
// verbatim with a failed state.
type Snapshot struct {
	State   model.JobState
	Outputs map[string]string
	Detail  string
}

// StatusProbe performs one status query for a job id.
type StatusProbe func(ctx context.Context, jobID string) (*Snapshot, error)

// Poller drives a job from submitted to a terminal state by querying its
// status on a fixed interval until the backend reports completion or the
// job's deadline expires. A transient probe error does not fail the job
// immediately: it is retried a bounded number of times with a short backoff
// before being escalated, so a momentary backend hiccup does not abandon a
// potentially successful job.
type Poller struct {
	Backend          string
	Interval         time.Duration
	TransientRetries int
	RetryBackoff     time.Duration
}

// Wait polls until the job reaches a terminal state. It mutates job.State,
// and on terminal success or failure job.Outputs or job.Error. Reaching the
// deadline marks the job timed_out locally; the remote job is left running.
// Context cancellation stops polling without marking the job terminal.
func (p *Poller) Wait(ctx context.Context, job *Job, probe StatusProbe) error {
	if job.State.Terminal() {
		return nil
	}

	retries := p.TransientRetries
	if retries <= 0 {
		retries = defaultTransientRetries
	}
	backoff := p.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	attempt := 0
	for {
		if !time.Now().Before(job.Deadline) {
			job.State = model.JobStateTimedOut
			telemetry.JobsTimedOut.WithLabelValues(p.Backend).Inc()
			log.Printf("[%s] Job %s - deadline exceeded, stopped waiting", p.Backend, job.ID)
			return &JobTimedOutError{JobID: job.ID, Waited: time.Since(job.SubmittedAt)}
		}

		attempt++
		snap, err := p.probeWithRetry(ctx, job.ID, probe, retries, backoff)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			job.State = model.JobStateFailed
			job.Error = err.Error()
			telemetry.JobsFailed.WithLabelValues(p.Backend).Inc()
			return &JobFailedError{
				JobID:  job.ID,
				Detail: fmt.Sprintf("status query failed after %d retries: %v", retries, err),
				Err:    err,
			}
		}

		log.Printf("[%s] Poll #%d (job=%s) - state: %s", p.Backend, attempt, job.ID, snap.State)

		switch snap.State {
		case model.JobStateSucceeded:
			job.State = model.JobStateSucceeded
			job.Outputs = snap.Outputs
			telemetry.JobsSucceeded.WithLabelValues(p.Backend).Inc()
			return nil
		case model.JobStateFailed:
			job.State = model.JobStateFailed
			job.Error = snap.Detail
			telemetry.JobsFailed.WithLabelValues(p.Backend).Inc()
			return &JobFailedError{JobID: job.ID, Detail: snap.Detail}
		case model.JobStateRunning:
			job.State = model.JobStateRunning
		}

		// Never sleep past the deadline: cap the wait so timeout is observed
		// at most one interval late.
		wait := p.Interval
		if remaining := time.Until(job.Deadline); remaining < wait {
			wait = remaining
		}
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			log.Printf("[%s] Poll (job=%s) - context cancelled", p.Backend, job.ID)
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// probeWithRetry issues one status query, retrying transient failures up to
// retries times with a fixed backoff.
func (p *Poller) probeWithRetry(ctx context.Context, jobID string, probe StatusProbe, retries int, backoff time.Duration) (*Snapshot, error) {
	var lastErr error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			telemetry.PollRetries.WithLabelValues(p.Backend).Inc()
			log.Printf("[%s] Poll (job=%s) - transient error, retry %d/%d: %v", p.Backend, jobID, i, retries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		telemetry.PollsTotal.WithLabelValues(p.Backend).Inc()
		snap, err := probe(ctx, jobID)
		if err == nil {
			return snap, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
