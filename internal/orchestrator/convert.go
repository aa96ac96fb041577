package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/config"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/telemetry"
)

// rvcStates maps RVC's raw status vocabulary onto the shared state model.
var rvcStates = map[string]model.JobState{
	"pending":    model.JobStateSubmitted,
	"processing": model.JobStateRunning,
	"done":       model.JobStateSucceeded,
	"failed":     model.JobStateFailed,
}

// resultOutput is the single logical output name of a conversion job.
const resultOutput = "result"

// ConversionOrchestrator composes submission, polling and artifact retrieval
// for RVC voice-conversion jobs.
type ConversionOrchestrator struct {
	client   *client.RVCClient
	poller   Poller
	fetcher  Fetcher
	deadline time.Duration
}

// NewConversionOrchestrator creates a conversion orchestrator.
func NewConversionOrchestrator(c *client.RVCClient, cfg *config.BackendConfig, outputDir string) *ConversionOrchestrator {
	return &ConversionOrchestrator{
		client: c,
		poller: Poller{
			Backend:  "RVC",
			Interval: time.Duration(cfg.PollInterval) * time.Second,
		},
		fetcher:  Fetcher{Backend: "RVC", Dir: outputDir},
		deadline: time.Duration(cfg.JobDeadline) * time.Second,
	}
}

// Health reports backend reachability.
func (o *ConversionOrchestrator) Health(ctx context.Context) error {
	return o.client.Health(ctx)
}

// Models lists available voice models.
func (o *ConversionOrchestrator) Models(ctx context.Context) ([]model.VoiceModel, error) {
	return o.client.ListModels(ctx)
}

// ModelInfo returns metadata for one voice model.
func (o *ConversionOrchestrator) ModelInfo(ctx context.Context, name string) (*model.VoiceModel, error) {
	return o.client.GetModelInfo(ctx, name)
}

// Submit validates the request, verifies the backend is reachable and makes
// exactly one submission call. A missing model identifier fails before any
// network traffic.
func (o *ConversionOrchestrator) Submit(ctx context.Context, req *model.ConvertRequest) (*Job, error) {
	if req.ModelName == "" {
		return nil, &ValidationError{Field: "modelName", Reason: "required"}
	}
	if req.AudioPath == "" {
		return nil, &ValidationError{Field: "audioPath", Reason: "required"}
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return nil, &ValidationError{Field: "audioPath", Reason: fmt.Sprintf("file not found: %s", req.AudioPath)}
	}

	format := req.OutputFormat
	if format == "" {
		format = model.FormatWAV
	}

	if err := o.client.Health(ctx); err != nil {
		return nil, fmt.Errorf("rvc unreachable, not submitting: %w", err)
	}

	audio, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, &ValidationError{Field: "audioPath", Reason: err.Error()}
	}
	defer audio.Close()

	fields := map[string]string{
		"model_name":        req.ModelName,
		"pitch_shift":       strconv.Itoa(req.PitchShift),
		"filter_radius":     strconv.Itoa(req.FilterRadius),
		"index_rate":        formatFloat(req.IndexRate, 0.75),
		"rms_mix_rate":      formatFloat(req.RMSMixRate, 0.25),
		"protect_voiceless": formatFloat(req.ProtectVoiceless, 0.5),
		"output_format":     string(format),
	}
	upload := client.FileUpload{
		Field:    "audio_file",
		Filename: filepath.Base(req.AudioPath),
		Reader:   audio,
	}

	resp, err := o.client.Convert(ctx, fields, upload)
	if err != nil {
		return nil, &SubmissionError{Backend: "RVC", Detail: err.Error(), Err: err}
	}
	if resp.JobID == "" {
		return nil, &SubmissionError{Backend: "RVC", Detail: "no job_id in response"}
	}

	telemetry.JobsSubmitted.WithLabelValues("RVC").Inc()
	params := map[string]string{
		"model_name":    req.ModelName,
		"output_format": string(format),
		"source":        filepath.Base(req.AudioPath),
	}
	return newJob(resp.JobID, model.JobKindConversion, params, o.deadline), nil
}

// Poll drives the job to a terminal state.
func (o *ConversionOrchestrator) Poll(ctx context.Context, job *Job) error {
	return o.poller.Wait(ctx, job, o.probe)
}

// Fetch downloads the converted audio of a succeeded job.
func (o *ConversionOrchestrator) Fetch(ctx context.Context, job *Job) (map[string]string, error) {
	prefix := "rvc_" + slugify(job.Parameters["model_name"])
	return o.fetcher.Fetch(ctx, job, prefix, job.Parameters["output_format"], o.download)
}

// Run is the blocking wrapper: submit, poll to completion, fetch the result.
func (o *ConversionOrchestrator) Run(ctx context.Context, req *model.ConvertRequest) (*Job, map[string]string, error) {
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

func (o *ConversionOrchestrator) probe(ctx context.Context, jobID string) (*Snapshot, error) {
	status, err := o.client.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	state, ok := rvcStates[status.Status]
	if !ok {
		return &Snapshot{
			State:  model.JobStateFailed,
			Detail: fmt.Sprintf("unrecognized status %q", status.Status),
		}, nil
	}

	snap := &Snapshot{State: state, Detail: status.Message}
	if state == model.JobStateSucceeded {
		snap.Outputs = map[string]string{resultOutput: jobID}
	}
	return snap, nil
}

func (o *ConversionOrchestrator) download(ctx context.Context, job *Job, name string, w io.Writer) error {
	_, err := o.client.DownloadResult(ctx, job.ID, w)
	return err
}

func formatFloat(v, fallback float64) string {
	if v == 0 {
		v = fallback
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
