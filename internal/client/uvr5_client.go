package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/audiobridge/api/internal/config"
)

// UVR5Client talks to a UVR5 (Ultimate Vocal Remover) server. Separation is
// job-based: a multipart submission returns a job id, the result endpoint is
// polled, and finished stems are downloaded one by one.
type UVR5Client struct {
	transport *Transport
}

// SeparationJob is the submission response.
type SeparationJob struct {
	JobID  string            `json:"job_id"`
	Status string            `json:"status"`
	Stems  map[string]string `json:"stems,omitempty"`
}

// SeparationStatus is one observation of a separation job. Stems maps stem
// type to availability token once the job completes.
type SeparationStatus struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Stems   map[string]string `json:"stems,omitempty"`
}

type uvr5Models struct {
	Models []string `json:"models"`
}

// NewUVR5Client creates a new UVR5 client.
func NewUVR5Client(cfg *config.BackendConfig) *UVR5Client {
	return &UVR5Client{
		transport: NewTransport("UVR5", cfg.BaseURL, time.Duration(cfg.Timeout)*time.Second),
	}
}

// Health checks the server's health endpoint.
func (c *UVR5Client) Health(ctx context.Context) error {
	return c.transport.Healthy(ctx, "/health")
}

// Separate submits an audio file for stem separation. The audio is streamed,
// not buffered.
func (c *UVR5Client) Separate(ctx context.Context, fields map[string]string, audio FileUpload) (*SeparationJob, error) {
	var job SeparationJob
	if err := c.transport.PostMultipart(ctx, "/api/separate", fields, []FileUpload{audio}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetResult queries the status of a separation job.
func (c *UVR5Client) GetResult(ctx context.Context, jobID string) (*SeparationStatus, error) {
	var status SeparationStatus
	if err := c.transport.GetJSON(ctx, fmt.Sprintf("/api/result/%s", jobID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DownloadStem streams one separated stem to w.
func (c *UVR5Client) DownloadStem(ctx context.Context, jobID, stemType string, w io.Writer) (string, error) {
	return c.transport.Download(ctx, fmt.Sprintf("/api/download/%s/%s", jobID, stemType), nil, w)
}

// ListModels returns the separation models the server reports.
func (c *UVR5Client) ListModels(ctx context.Context) ([]string, error) {
	var list uvr5Models
	if err := c.transport.GetJSON(ctx, "/api/models", &list); err != nil {
		return nil, err
	}
	return list.Models, nil
}

// IsConfigured returns true if the client has a base URL.
func (c *UVR5Client) IsConfigured() bool {
	return c.transport.BaseURL() != ""
}
