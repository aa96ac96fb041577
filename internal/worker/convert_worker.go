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

// ConvertWorker processes voice-conversion jobs against RVC.
type ConvertWorker struct {
	baseWorker
	orch *orchestrator.ConversionOrchestrator
}

// NewConvertWorker creates a new conversion worker.
func NewConvertWorker(jobs *service.JobService, orch *orchestrator.ConversionOrchestrator, r2 client.StorageClient, hub *websocket.Hub) *ConvertWorker {
	return &ConvertWorker{
		baseWorker: baseWorker{jobs: jobs, r2: r2, hub: hub},
		orch:       orch,
	}
}

// ProcessTask handles one conversion task.
func (w *ConvertWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := decodeTask(t)
	if err != nil {
		return err
	}
	log.Printf("Starting conversion job: %s", task.JobID)

	var req model.ConvertRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		return w.failJob(ctx, task.JobID, model.RecordStatusFailed, "INVALID_PAYLOAD",
			fmt.Errorf("invalid conversion payload: %w", err))
	}

	return w.run(ctx, task.JobID, &jobExecution{
		submit: func(ctx context.Context) (*orchestrator.Job, error) {
			return w.orch.Submit(ctx, &req)
		},
		poll:  w.orch.Poll,
		fetch: w.orch.Fetch,
	})
}
