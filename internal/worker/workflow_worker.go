package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/internal/websocket"
)

// WorkflowWorker processes workflow-execution jobs against ComfyUI.
type WorkflowWorker struct {
	baseWorker
	orch *orchestrator.WorkflowOrchestrator
}

// NewWorkflowWorker creates a new workflow worker.
func NewWorkflowWorker(jobs *service.JobService, orch *orchestrator.WorkflowOrchestrator, r2 client.StorageClient, hub *websocket.Hub) *WorkflowWorker {
	return &WorkflowWorker{
		baseWorker: baseWorker{jobs: jobs, r2: r2, hub: hub},
		orch:       orch,
	}
}

// ProcessTask handles one workflow task.
func (w *WorkflowWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := decodeTask(t)
	if err != nil {
		return err
	}
	log.Printf("Starting workflow job: %s", task.JobID)

	var req model.WorkflowRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		return w.failJob(ctx, task.JobID, model.RecordStatusFailed, "INVALID_PAYLOAD",
			fmt.Errorf("invalid workflow payload: %w", err))
	}

	return w.run(ctx, task.JobID, &jobExecution{
		submit: func(ctx context.Context) (*orchestrator.Job, error) {
			return w.orch.Submit(ctx, &req)
		},
		poll:  w.orch.Poll,
		fetch: w.orch.Fetch,
	})
}
