package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/internal/websocket"
)

// Worker phases, mirrored into the job record and broadcast over WebSocket.
const (
	phaseSubmitting = "submitting"
	phasePolling    = "polling"
	phaseFetching   = "fetching"
	phaseArchiving  = "archiving"
)

// cancelCheckInterval is how often a running worker checks whether the record
// was canceled out from under it.
const cancelCheckInterval = 2 * time.Second

// jobTaskPayload is the envelope the service enqueues.
type jobTaskPayload struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// jobExecution binds the three lifecycle primitives of one backend job. Each
// worker builds one from its orchestrator and the decoded request.
type jobExecution struct {
	submit func(ctx context.Context) (*orchestrator.Job, error)
	poll   func(ctx context.Context, job *orchestrator.Job) error
	fetch  func(ctx context.Context, job *orchestrator.Job) (map[string]string, error)
}

// baseWorker carries the collaborators shared by all job workers.
type baseWorker struct {
	jobs *service.JobService
	r2   client.StorageClient
	hub  *websocket.Hub
}

func decodeTask(t *asynq.Task) (*jobTaskPayload, error) {
	var payload jobTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	return &payload, nil
}

// run drives one job through submit, poll and fetch, keeping the record and
// the WebSocket subscribers in sync. Terminal failures are recorded and not
// retried; only record-store errors bubble up as retryable.
func (w *baseWorker) run(ctx context.Context, jobID string, exec *jobExecution) error {
	if w.jobs.IsCanceled(ctx, jobID) {
		log.Printf("Job %s canceled before start", jobID)
		return nil
	}

	w.updatePhase(ctx, jobID, phaseSubmitting)

	job, err := exec.submit(ctx)
	if err != nil {
		return w.failJob(ctx, jobID, model.RecordStatusFailed, "SUBMISSION_FAILED", err)
	}
	if err := w.jobs.SetRemoteID(ctx, jobID, job.ID); err != nil {
		log.Printf("Failed to record remote ID for job %s: %v", jobID, err)
	}

	w.updatePhase(ctx, jobID, phasePolling)

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	stopWatch := w.watchForCancel(pollCtx, jobID, cancelPoll)

	err = exec.poll(pollCtx, job)
	stopWatch()
	if err != nil {
		if w.jobs.IsCanceled(ctx, jobID) {
			log.Printf("Job %s canceled while polling, remote job %s left running", jobID, job.ID)
			return nil
		}
		var timedOut *orchestrator.JobTimedOutError
		if errors.As(err, &timedOut) {
			return w.failJob(ctx, jobID, model.RecordStatusTimedOut, "JOB_TIMEOUT", err)
		}
		return w.failJob(ctx, jobID, model.RecordStatusFailed, "JOB_FAILED", err)
	}

	w.updatePhase(ctx, jobID, phaseFetching)

	files, err := exec.fetch(ctx, job)
	if err != nil {
		return w.failJob(ctx, jobID, model.RecordStatusFailed, "FETCH_FAILED", err)
	}

	result := &model.JobResult{
		JobID:       jobID,
		RemoteID:    job.ID,
		Files:       files,
		Elapsed:     time.Since(job.SubmittedAt).Seconds(),
		CompletedAt: time.Now(),
	}

	if w.r2 != nil {
		w.updatePhase(ctx, jobID, phaseArchiving)
		result.ArchiveURLs = w.archiveFiles(ctx, jobID, files)
	}

	if err := w.jobs.CompleteJob(ctx, jobID, result); err != nil {
		return fmt.Errorf("failed to save result for job %s: %w", jobID, err)
	}

	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Job %s completed, %d file(s) saved", jobID, len(files))
	return nil
}

// watchForCancel cancels the poll context if the record turns canceled. The
// returned stop function waits for the watcher to exit.
func (w *baseWorker) watchForCancel(ctx context.Context, jobID string, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cancelCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if w.jobs.IsCanceled(ctx, jobID) {
					cancel()
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// archiveFiles uploads fetched artifacts to object storage. Archive failures
// are logged but never fail the job; the local files are the primary result.
func (w *baseWorker) archiveFiles(ctx context.Context, jobID string, files map[string]string) map[string]string {
	urls := make(map[string]string, len(files))
	for name, path := range files {
		file, err := os.Open(path)
		if err != nil {
			log.Printf("Failed to open %s for archiving: %v", path, err)
			continue
		}

		key := fmt.Sprintf("jobs/%s/%s", jobID, filepath.Base(path))
		url, err := w.r2.Upload(ctx, key, file, contentTypeFor(path))
		file.Close()
		if err != nil {
			log.Printf("Failed to archive %s: %v", path, err)
			continue
		}
		urls[name] = url
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func (w *baseWorker) updatePhase(ctx context.Context, jobID, phase string) {
	if err := w.jobs.UpdatePhase(ctx, jobID, phase); err != nil {
		log.Printf("Failed to update phase for job %s: %v", jobID, err)
	}
	w.hub.BroadcastProgress(jobID, model.RecordStatusRunning, phase)
}

// failJob records the terminal failure and tells asynq not to retry. The
// error detail is preserved verbatim in the record and the broadcast.
func (w *baseWorker) failJob(ctx context.Context, jobID string, status model.RecordStatus, code string, cause error) error {
	if err := w.jobs.FailJob(ctx, jobID, status, cause.Error()); err != nil {
		log.Printf("Failed to mark job %s as %s: %v", jobID, status, err)
	}
	w.hub.BroadcastError(jobID, code, cause.Error())
	log.Printf("Job %s %s: %v", jobID, status, cause)
	return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
}
