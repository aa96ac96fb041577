package model

// JobKind identifies which backend a job runs against and therefore which
// status vocabulary and output-naming convention applies.
type JobKind string

const (
	JobKindSeparation JobKind = "separation"
	JobKindConversion JobKind = "voice-conversion"
	JobKindWorkflow   JobKind = "workflow-execution"
)

// JobState is the shared lifecycle model every backend's raw status strings
// are normalized onto. submitted and running are the only non-terminal states.
type JobState string

const (
	JobStateSubmitted JobState = "submitted"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed_out"
)

// Terminal reports whether no further polling occurs for a job in this state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateTimedOut:
		return true
	}
	return false
}

// RecordStatus is the status of a queued job record as exposed by the
// non-blocking API. It extends the shared job states with the queue-side
// states a record passes through outside of an orchestrator invocation.
type RecordStatus string

const (
	RecordStatusQueued    RecordStatus = "queued"
	RecordStatusRunning   RecordStatus = "running"
	RecordStatusSucceeded RecordStatus = "succeeded"
	RecordStatusFailed    RecordStatus = "failed"
	RecordStatusTimedOut  RecordStatus = "timed_out"
	RecordStatusCanceled  RecordStatus = "canceled"
)

// AudioFormat is an output format accepted across backends.
type AudioFormat string

const (
	FormatWAV  AudioFormat = "wav"
	FormatFLAC AudioFormat = "flac"
	FormatMP3  AudioFormat = "mp3"
)
