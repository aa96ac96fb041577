package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/config"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/telemetry"
)

// WorkflowOrchestrator composes submission, polling and artifact retrieval
// for ComfyUI workflow executions. ComfyUI reports no status enum; completion
// is observed through the history endpoint. A history entry with outputs
// means succeeded, an error status means failed, anything else means the
// workflow is still executing.
type WorkflowOrchestrator struct {
	client   *client.ComfyUIClient
	poller   Poller
	fetcher  Fetcher
	deadline time.Duration
}

// NewWorkflowOrchestrator creates a workflow orchestrator.
func NewWorkflowOrchestrator(c *client.ComfyUIClient, cfg *config.BackendConfig, outputDir string) *WorkflowOrchestrator {
	return &WorkflowOrchestrator{
		client: c,
		poller: Poller{
			Backend:  "ComfyUI",
			Interval: time.Duration(cfg.PollInterval) * time.Second,
		},
		fetcher:  Fetcher{Backend: "ComfyUI", Dir: outputDir},
		deadline: time.Duration(cfg.JobDeadline) * time.Second,
	}
}

// Health reports backend reachability.
func (o *WorkflowOrchestrator) Health(ctx context.Context) error {
	return o.client.Health(ctx)
}

// QueueDepth returns the number of running and pending workflows.
func (o *WorkflowOrchestrator) QueueDepth(ctx context.Context) (running, pending int, err error) {
	return o.client.GetQueueDepth(ctx)
}

// Submit validates the workflow graph, verifies the backend is reachable and
// queues the prompt. The returned Job is in state submitted.
func (o *WorkflowOrchestrator) Submit(ctx context.Context, req *model.WorkflowRequest) (*Job, error) {
	if len(req.Workflow) == 0 {
		return nil, &ValidationError{Field: "workflow", Reason: "required"}
	}
	if !json.Valid(req.Workflow) {
		return nil, &ValidationError{Field: "workflow", Reason: "not valid JSON"}
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	if err := o.client.Health(ctx); err != nil {
		return nil, fmt.Errorf("comfyui unreachable, not submitting: %w", err)
	}

	promptID, err := o.client.QueuePrompt(ctx, req.Workflow, clientID)
	if err != nil {
		return nil, &SubmissionError{Backend: "ComfyUI", Detail: err.Error(), Err: err}
	}

	telemetry.JobsSubmitted.WithLabelValues("ComfyUI").Inc()
	params := map[string]string{"client_id": clientID}
	return newJob(promptID, model.JobKindWorkflow, params, o.deadline), nil
}

// Poll drives the job to a terminal state.
func (o *WorkflowOrchestrator) Poll(ctx context.Context, job *Job) error {
	return o.poller.Wait(ctx, job, o.probe)
}

// Fetch downloads every output file the workflow produced.
func (o *WorkflowOrchestrator) Fetch(ctx context.Context, job *Job) (map[string]string, error) {
	return o.fetcher.Fetch(ctx, job, "comfyui", "bin", o.download)
}

// Run is the blocking wrapper: submit, poll to completion, fetch outputs.
func (o *WorkflowOrchestrator) Run(ctx context.Context, req *model.WorkflowRequest) (*Job, map[string]string, error) {
	job, err := o.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if err := o.Poll(ctx, job); err != nil {
		return job, nil, err
	}
	files, err := o.Fetch(ctx, job)
	return job, files, err
}

func (o *WorkflowOrchestrator) probe(ctx context.Context, jobID string) (*Snapshot, error) {
	entry, err := o.client.GetHistory(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// No history entry yet: queued or executing.
		return &Snapshot{State: model.JobStateRunning}, nil
	}

	if entry.Status.StatusStr == "error" {
		return &Snapshot{
			State:  model.JobStateFailed,
			Detail: "workflow execution failed",
		}, nil
	}

	outputs := collectWorkflowOutputs(entry)
	if len(outputs) == 0 {
		return &Snapshot{State: model.JobStateRunning}, nil
	}
	return &Snapshot{State: model.JobStateSucceeded, Outputs: outputs}, nil
}

// collectWorkflowOutputs flattens the per-node output lists into logical
// names mapped to download tokens. The token is the query string /view
// expects, so fetching needs no second history lookup.
func collectWorkflowOutputs(entry *client.HistoryEntry) map[string]string {
	outputs := make(map[string]string)
	add := func(nodeID string, refs []client.FileRef) {
		for _, ref := range refs {
			name := ref.Filename
			if _, taken := outputs[name]; taken {
				name = nodeID + "_" + ref.Filename
			}
			outputs[name] = encodeFileRef(ref)
		}
	}
	for nodeID, node := range entry.Outputs {
		add(nodeID, node.Audio)
		add(nodeID, node.Images)
	}
	return outputs
}

func encodeFileRef(ref client.FileRef) string {
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", ref.Type)
	return q.Encode()
}

func decodeFileRef(token string) (client.FileRef, error) {
	q, err := url.ParseQuery(token)
	if err != nil {
		return client.FileRef{}, fmt.Errorf("bad output token: %w", err)
	}
	return client.FileRef{
		Filename:  q.Get("filename"),
		Subfolder: q.Get("subfolder"),
		Type:      q.Get("type"),
	}, nil
}

func (o *WorkflowOrchestrator) download(ctx context.Context, job *Job, name string, w io.Writer) error {
	ref, err := decodeFileRef(job.Outputs[name])
	if err != nil {
		return err
	}
	_, err = o.client.DownloadFile(ctx, ref, w)
	return err
}
