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

// SeparateWorker processes stem-separation jobs against UVR5.
type SeparateWorker struct {
	baseWorker
	orch *orchestrator.SeparationOrchestrator
}

// NewSeparateWorker creates a new separation worker.
func NewSeparateWorker(jobs *service.JobService, orch *orchestrator.SeparationOrchestrator, r2 client.StorageClient, hub *websocket.Hub) *SeparateWorker {
	return &SeparateWorker{
		baseWorker: baseWorker{jobs: jobs, r2: r2, hub: hub},
		orch:       orch,
	}
}

// ProcessTask handles one separation task.
func (w *SeparateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := decodeTask(t)
	if err != nil {
		return err
	}
	log.Printf("Starting separation job: %s", task.JobID)

	var req model.SeparateRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		return w.failJob(ctx, task.JobID, model.RecordStatusFailed, "INVALID_PAYLOAD",
			fmt.Errorf("invalid separation payload: %w", err))
	}

	return w.run(ctx, task.JobID, &jobExecution{
		submit: func(ctx context.Context) (*orchestrator.Job, error) {
			return w.orch.Submit(ctx, &req)
		},
		poll:  w.orch.Poll,
		fetch: w.orch.Fetch,
	})
}
