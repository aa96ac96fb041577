package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/config"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/telemetry"
)

// uvr5States maps UVR5's raw status vocabulary onto the shared state model.
var uvr5States = map[string]model.JobState{
	"queued":     model.JobStateSubmitted,
	"processing": model.JobStateRunning,
	"completed":  model.JobStateSucceeded,
	"error":      model.JobStateFailed,
}

// SeparationOrchestrator composes submission, polling and artifact retrieval
// for UVR5 stem-separation jobs. Run is the blocking convenience wrapper;
// Submit, Poll and Fetch are usable separately by a poll-driven caller.
type SeparationOrchestrator struct {
	client   *client.UVR5Client
	poller   Poller
	fetcher  Fetcher
	deadline time.Duration
}

// NewSeparationOrchestrator creates a separation orchestrator.
func NewSeparationOrchestrator(c *client.UVR5Client, cfg *config.BackendConfig, outputDir string) *SeparationOrchestrator {
	return &SeparationOrchestrator{
		client: c,
		poller: Poller{
			Backend:  "UVR5",
			Interval: time.Duration(cfg.PollInterval) * time.Second,
		},
		fetcher:  Fetcher{Backend: "UVR5", Dir: outputDir},
		deadline: time.Duration(cfg.JobDeadline) * time.Second,
	}
}

// Health reports backend reachability.
func (o *SeparationOrchestrator) Health(ctx context.Context) error {
	return o.client.Health(ctx)
}

// Models lists available separation models.
func (o *SeparationOrchestrator) Models(ctx context.Context) ([]string, error) {
	return o.client.ListModels(ctx)
}

// Submit validates the request, verifies the backend is reachable and makes
// exactly one submission call. The returned Job is in state submitted.
func (o *SeparationOrchestrator) Submit(ctx context.Context, req *model.SeparateRequest) (*Job, error) {
	if req.AudioPath == "" {
		return nil, &ValidationError{Field: "audioPath", Reason: "required"}
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return nil, &ValidationError{Field: "audioPath", Reason: fmt.Sprintf("file not found: %s", req.AudioPath)}
	}

	modelName := req.ModelName
	if modelName == "" {
		modelName = model.DefaultSeparationModel
	}
	format := req.OutputFormat
	if format == "" {
		format = model.FormatWAV
	}
	stemNaming := req.StemNaming
	if stemNaming == "" {
		stemNaming = "standard"
	}

	// Fail fast with a clear diagnostic instead of submitting into the void.
	if err := o.client.Health(ctx); err != nil {
		return nil, fmt.Errorf("uvr5 unreachable, not submitting: %w", err)
	}

	audio, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, &ValidationError{Field: "audioPath", Reason: err.Error()}
	}
	defer audio.Close()

	fields := map[string]string{
		"model_name":    modelName,
		"output_format": string(format),
		"stem_naming":   stemNaming,
	}
	upload := client.FileUpload{
		Field:    "audio_file",
		Filename: filepath.Base(req.AudioPath),
		Reader:   audio,
	}

	resp, err := o.client.Separate(ctx, fields, upload)
	if err != nil {
		return nil, &SubmissionError{Backend: "UVR5", Detail: err.Error(), Err: err}
	}
	if resp.JobID == "" {
		return nil, &SubmissionError{Backend: "UVR5", Detail: "no job_id in response"}
	}

	telemetry.JobsSubmitted.WithLabelValues("UVR5").Inc()
	params := map[string]string{
		"model_name":    modelName,
		"output_format": string(format),
		"source":        filepath.Base(req.AudioPath),
	}
	return newJob(resp.JobID, model.JobKindSeparation, params, o.deadline), nil
}

// Poll drives the job to a terminal state.
func (o *SeparationOrchestrator) Poll(ctx context.Context, job *Job) error {
	return o.poller.Wait(ctx, job, o.probe)
}

// Fetch downloads all separated stems of a succeeded job.
func (o *SeparationOrchestrator) Fetch(ctx context.Context, job *Job) (map[string]string, error) {
	return o.fetcher.Fetch(ctx, job, "uvr5", job.Parameters["output_format"], o.download)
}

// Run is the blocking wrapper: submit, poll to completion, fetch stems.
func (o *SeparationOrchestrator) Run(ctx context.Context, req *model.SeparateRequest) (*Job, map[string]string, error) {
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

func (o *SeparationOrchestrator) probe(ctx context.Context, jobID string) (*Snapshot, error) {
	status, err := o.client.GetResult(ctx, jobID)
	if err != nil {
		return nil, err
	}

	state, ok := uvr5States[status.Status]
	if !ok {
		return &Snapshot{
			State:  model.JobStateFailed,
			Detail: fmt.Sprintf("unrecognized status %q", status.Status),
		}, nil
	}

	snap := &Snapshot{State: state, Detail: status.Message}
	if state == model.JobStateSucceeded {
		snap.Outputs = make(map[string]string, len(status.Stems))
		for stem := range status.Stems {
			snap.Outputs[stem] = stem
		}
	}
	return snap, nil
}

func (o *SeparationOrchestrator) download(ctx context.Context, job *Job, name string, w io.Writer) error {
	_, err := o.client.DownloadStem(ctx, job.ID, job.Outputs[name], w)
	return err
}
