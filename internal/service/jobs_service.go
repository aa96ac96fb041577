package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/audiobridge/api/internal/model"
)

// Task types processed by the worker mux.
const (
	TaskTypeSeparate = "separate:process"
	TaskTypeConvert  = "convert:process"
	TaskTypeWorkflow = "workflow:process"
)

// ErrJobNotFound is returned when no record exists for a job ID.
var ErrJobNotFound = errors.New("job not found")

// ErrJobNotCompleted is returned when a result is requested before the job
// reached succeeded.
var ErrJobNotCompleted = errors.New("job not completed")

// TaskEnqueuer is the slice of asynq.Client the service needs. Tests substitute
// a fake.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService manages job records and task queuing for the job-based backends.
// Records live in Redis for 24 hours; processing happens in the worker package.
type JobService struct {
	redis       *redis.Client
	asynqClient TaskEnqueuer
}

func NewJobService(redisClient *redis.Client, asynqClient TaskEnqueuer) *JobService {
	return &JobService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartSeparation queues a new stem-separation job.
func (s *JobService) StartSeparation(ctx context.Context, req *model.SeparateRequest) (*model.JobStartResponse, error) {
	return s.start(ctx, model.JobKindSeparation, TaskTypeSeparate, "separate", req)
}

// StartConversion queues a new voice-conversion job.
func (s *JobService) StartConversion(ctx context.Context, req *model.ConvertRequest) (*model.JobStartResponse, error) {
	return s.start(ctx, model.JobKindConversion, TaskTypeConvert, "convert", req)
}

// StartWorkflow queues a new workflow-execution job.
func (s *JobService) StartWorkflow(ctx context.Context, req *model.WorkflowRequest) (*model.JobStartResponse, error) {
	return s.start(ctx, model.JobKindWorkflow, TaskTypeWorkflow, "workflow", req)
}

func (s *JobService) start(ctx context.Context, kind model.JobKind, taskType, queue string, req interface{}) (*model.JobStartResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.JobRecord{
		ID:        jobID,
		Kind:      kind,
		Status:    model.RecordStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: now,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newJobTask(taskType, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue(queue),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.JobStartResponse{
		JobID:     jobID,
		Kind:      kind,
		Status:    model.RecordStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a job.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.JobStatusResponse{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		Phase:       job.Phase,
		RemoteID:    job.RemoteID,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the result of a succeeded job.
func (s *JobService) GetResult(ctx context.Context, jobID string) (*model.JobResult, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.RecordStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	var result model.JobResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Cancel stops the local wait for a job. The remote backend job keeps running;
// only the record and the worker's polling loop are affected.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.JobCancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.RecordStatusQueued && job.Status != model.RecordStatusRunning {
		return nil, fmt.Errorf("job already completed")
	}

	job.Status = model.RecordStatusCanceled
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	return &model.JobCancelResponse{
		JobID:  jobID,
		Status: model.RecordStatusCanceled,
	}, nil
}

// UpdatePhase records the worker's current phase (called by worker).
func (s *JobService) UpdatePhase(ctx context.Context, jobID, phase string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Phase = phase
	if job.Status == model.RecordStatusQueued {
		job.Status = model.RecordStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// SetRemoteID records the backend-assigned job ID (called by worker).
func (s *JobService) SetRemoteID(ctx context.Context, jobID, remoteID string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.RemoteID = remoteID
	return s.saveJob(ctx, job)
}

// CompleteJob marks a job as succeeded and stores its result (called by worker).
func (s *JobService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.RecordStatusSucceeded
	job.Phase = ""
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// FailJob marks a job as failed or timed_out (called by worker).
func (s *JobService) FailJob(ctx context.Context, jobID string, status model.RecordStatus, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = status
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// IsCanceled reports whether the record was canceled out from under the worker.
func (s *JobService) IsCanceled(ctx context.Context, jobID string) bool {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status == model.RecordStatusCanceled
}

// Helper methods

// storedJob is the Redis representation. Payload and Result are excluded from
// the public JSON shape of JobRecord, so they are persisted explicitly here.
type storedJob struct {
	model.JobRecord
	Payload []byte `json:"payload,omitempty"`
	Result  []byte `json:"result,omitempty"`
}

func (s *JobService) saveJob(ctx context.Context, job *model.JobRecord) error {
	data, err := json.Marshal(&storedJob{JobRecord: *job, Payload: job.Payload, Result: job.Result})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, 24*time.Hour).Err()
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*model.JobRecord, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var stored storedJob
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	job := stored.JobRecord
	job.Payload = stored.Payload
	job.Result = stored.Result
	return &job, nil
}

func newJobTask(taskType, jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
