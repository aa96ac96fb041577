package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/audiobridge/api/internal/config"
	"github.com/audiobridge/api/internal/model"
)

// RVCClient talks to an RVC (voice conversion) server. Conversion is
// job-based: a multipart submission returns a job id, the job endpoint is
// polled, and the converted audio is downloaded once the job is done.
type RVCClient struct {
	transport *Transport
}

// ConversionJob is the submission response.
type ConversionJob struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ConversionStatus is one observation of a conversion job.
type ConversionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type rvcModels struct {
	Models []model.VoiceModel `json:"models"`
}

// NewRVCClient creates a new RVC client.
func NewRVCClient(cfg *config.BackendConfig) *RVCClient {
	return &RVCClient{
		transport: NewTransport("RVC", cfg.BaseURL, time.Duration(cfg.Timeout)*time.Second),
	}
}

// Health checks the server's health endpoint.
func (c *RVCClient) Health(ctx context.Context) error {
	return c.transport.Healthy(ctx, "/health")
}

// Convert submits an audio file for voice conversion. The audio is streamed,
// not buffered.
func (c *RVCClient) Convert(ctx context.Context, fields map[string]string, audio FileUpload) (*ConversionJob, error) {
	var job ConversionJob
	if err := c.transport.PostMultipart(ctx, "/api/convert", fields, []FileUpload{audio}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob queries the status of a conversion job.
func (c *RVCClient) GetJob(ctx context.Context, jobID string) (*ConversionStatus, error) {
	var status ConversionStatus
	if err := c.transport.GetJSON(ctx, fmt.Sprintf("/api/jobs/%s", jobID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DownloadResult streams the converted audio to w.
func (c *RVCClient) DownloadResult(ctx context.Context, jobID string, w io.Writer) (string, error) {
	return c.transport.Download(ctx, fmt.Sprintf("/api/download/%s", jobID), nil, w)
}

// ListModels returns the voice models the server reports.
func (c *RVCClient) ListModels(ctx context.Context) ([]model.VoiceModel, error) {
	var list rvcModels
	if err := c.transport.GetJSON(ctx, "/api/models", &list); err != nil {
		return nil, err
	}
	return list.Models, nil
}

// GetModelInfo returns metadata for one voice model.
func (c *RVCClient) GetModelInfo(ctx context.Context, name string) (*model.VoiceModel, error) {
	var info model.VoiceModel
	if err := c.transport.GetJSON(ctx, fmt.Sprintf("/api/models/%s", name), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// IsConfigured returns true if the client has a base URL.
func (c *RVCClient) IsConfigured() bool {
	return c.transport.BaseURL() != ""
}
