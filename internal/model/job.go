package model

import "time"

// JobRecord is the persisted view of a background job as stored in Redis and
// exposed by the status/result endpoints. The in-flight lifecycle itself is
// owned by the orchestrator invocation processing the job; the record only
// mirrors it.
type JobRecord struct {
	ID          string       `json:"id"`
	Kind        JobKind      `json:"kind"`
	Status      RecordStatus `json:"status"`
	Phase       string       `json:"phase,omitempty"` // submitting, polling, fetching
	RemoteID    string       `json:"remoteId,omitempty"`
	Error       *string      `json:"error,omitempty"`
	Payload     []byte       `json:"-"` // request, stored as JSON
	Result      []byte       `json:"-"` // result, stored as JSON
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// JobStartResponse is returned by the start endpoints.
type JobStartResponse struct {
	JobID     string       `json:"jobId"`
	Kind      JobKind      `json:"kind"`
	Status    RecordStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// JobStatusResponse is returned by the status endpoints.
type JobStatusResponse struct {
	JobID       string       `json:"jobId"`
	Kind        JobKind      `json:"kind"`
	Status      RecordStatus `json:"status"`
	Phase       string       `json:"phase,omitempty"`
	RemoteID    string       `json:"remoteId,omitempty"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// JobCancelResponse is returned by the cancel endpoints. Canceling stops the
// local wait; the remote backend job is not assumed to be cancellable.
type JobCancelResponse struct {
	JobID  string       `json:"jobId"`
	Status RecordStatus `json:"status"`
}

// JobResult is the common result shape for the job-based backends: the fetched
// artifacts keyed by logical output name, plus optional archive URLs when the
// artifacts were uploaded to object storage.
type JobResult struct {
	JobID       string            `json:"jobId"`
	RemoteID    string            `json:"remoteId"`
	Files       map[string]string `json:"files"`
	ArchiveURLs map[string]string `json:"archiveUrls,omitempty"`
	Elapsed     float64           `json:"elapsedSeconds"`
	CompletedAt time.Time         `json:"completedAt"`
}
