package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/audiobridge/api/internal/model"
)

// fakeEnqueuer records enqueued tasks instead of touching a real queue.
type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newTestService(t *testing.T) (*JobService, *fakeEnqueuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	enq := &fakeEnqueuer{}
	return NewJobService(redisClient, enq), enq
}

func TestStartSeparation_CreatesRecordAndEnqueues(t *testing.T) {
	svc, enq := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartSeparation(ctx, &model.SeparateRequest{AudioPath: "/tmp/in.wav"})
	if err != nil {
		t.Fatalf("StartSeparation failed: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected jobId")
	}
	if resp.Status != model.RecordStatusQueued {
		t.Errorf("expected queued, got %s", resp.Status)
	}
	if resp.Kind != model.JobKindSeparation {
		t.Errorf("expected separation kind, got %s", resp.Kind)
	}

	if len(enq.tasks) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(enq.tasks))
	}
	if enq.tasks[0].Type() != TaskTypeSeparate {
		t.Errorf("expected task type %s, got %s", TaskTypeSeparate, enq.tasks[0].Type())
	}

	status, err := svc.GetStatus(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.Status != model.RecordStatusQueued {
		t.Errorf("expected queued record, got %s", status.Status)
	}
}

func TestGetStatus_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetStatus(context.Background(), "no-such-job")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetResult_GatedOnSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartConversion(ctx, &model.ConvertRequest{AudioPath: "/tmp/in.wav", ModelName: "m"})
	if err != nil {
		t.Fatalf("StartConversion failed: %v", err)
	}

	// Queued job has no result yet.
	if _, err := svc.GetResult(ctx, resp.JobID); !errors.Is(err, ErrJobNotCompleted) {
		t.Fatalf("expected ErrJobNotCompleted, got %v", err)
	}

	result := &model.JobResult{
		JobID:    resp.JobID,
		RemoteID: "conv-9",
		Files:    map[string]string{"result": "/out/rvc_m.wav"},
	}
	if err := svc.CompleteJob(ctx, resp.JobID, result); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	got, err := svc.GetResult(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got.RemoteID != "conv-9" || got.Files["result"] != "/out/rvc_m.wav" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestCancel_Lifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartWorkflow(ctx, &model.WorkflowRequest{Workflow: []byte(`{}`)})
	if err != nil {
		t.Fatalf("StartWorkflow failed: %v", err)
	}

	cancelResp, err := svc.Cancel(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelResp.Status != model.RecordStatusCanceled {
		t.Errorf("expected canceled, got %s", cancelResp.Status)
	}
	if !svc.IsCanceled(ctx, resp.JobID) {
		t.Error("expected IsCanceled to report true")
	}

	// A canceled job cannot be canceled again.
	if _, err := svc.Cancel(ctx, resp.JobID); err == nil {
		t.Fatal("expected error canceling a terminal job")
	}
}

func TestWorkerLifecycleHelpers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartSeparation(ctx, &model.SeparateRequest{AudioPath: "/tmp/in.wav"})
	if err != nil {
		t.Fatalf("StartSeparation failed: %v", err)
	}
	jobID := resp.JobID

	if err := svc.UpdatePhase(ctx, jobID, "submitting"); err != nil {
		t.Fatalf("UpdatePhase failed: %v", err)
	}
	status, _ := svc.GetStatus(ctx, jobID)
	if status.Status != model.RecordStatusRunning {
		t.Errorf("expected running after first phase update, got %s", status.Status)
	}
	if status.Phase != "submitting" {
		t.Errorf("expected phase submitting, got %q", status.Phase)
	}
	if status.StartedAt == nil {
		t.Error("expected startedAt set")
	}

	if err := svc.SetRemoteID(ctx, jobID, "sep-42"); err != nil {
		t.Fatalf("SetRemoteID failed: %v", err)
	}
	status, _ = svc.GetStatus(ctx, jobID)
	if status.RemoteID != "sep-42" {
		t.Errorf("expected remote id recorded, got %q", status.RemoteID)
	}

	if err := svc.FailJob(ctx, jobID, model.RecordStatusTimedOut, "job sep-42 timed out after 10m"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}
	status, _ = svc.GetStatus(ctx, jobID)
	if status.Status != model.RecordStatusTimedOut {
		t.Errorf("expected timed_out, got %s", status.Status)
	}
	if status.Error == nil || *status.Error == "" {
		t.Error("expected error message recorded")
	}
	if status.CompletedAt == nil {
		t.Error("expected completedAt set")
	}
}

func TestStart_EnqueueFailure(t *testing.T) {
	svc, enq := newTestService(t)
	enq.err = errors.New("queue unavailable")

	if _, err := svc.StartSeparation(context.Background(), &model.SeparateRequest{AudioPath: "/tmp/in.wav"}); err == nil {
		t.Fatal("expected error when enqueue fails")
	}
}
