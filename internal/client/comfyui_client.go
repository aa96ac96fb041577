package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/audiobridge/api/internal/config"
)

// ComfyUIClient talks to a ComfyUI server. Workflow execution is job-based:
// queueing a prompt returns a prompt id, completion is observed through the
// history endpoint, and output files are downloaded through /view.
type ComfyUIClient struct {
	transport *Transport
}

// HistoryEntry is one prompt's execution record. Outputs appear only once the
// workflow has finished; Status carries an error marker when execution failed.
type HistoryEntry struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  HistoryStatus         `json:"status"`
}

// HistoryStatus is ComfyUI's per-prompt status block.
type HistoryStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// NodeOutput lists the files one workflow node produced.
type NodeOutput struct {
	Audio  []FileRef `json:"audio,omitempty"`
	Images []FileRef `json:"images,omitempty"`
}

// FileRef locates one output file on the ComfyUI server.
type FileRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type queueInfo struct {
	Running []json.RawMessage `json:"queue_running"`
	Pending []json.RawMessage `json:"queue_pending"`
}

// NewComfyUIClient creates a new ComfyUI client.
func NewComfyUIClient(cfg *config.BackendConfig) *ComfyUIClient {
	return &ComfyUIClient{
		transport: NewTransport("ComfyUI", cfg.BaseURL, time.Duration(cfg.Timeout)*time.Second),
	}
}

// Health checks reachability via the system stats endpoint.
func (c *ComfyUIClient) Health(ctx context.Context) error {
	return c.transport.Healthy(ctx, "/system_stats")
}

// QueuePrompt queues a workflow for execution and returns the prompt id.
// clientID may be empty, in which case one is generated.
func (c *ComfyUIClient) QueuePrompt(ctx context.Context, workflow json.RawMessage, clientID string) (string, error) {
	if clientID == "" {
		clientID = uuid.New().String()
	}

	payload := map[string]interface{}{
		"prompt":    workflow,
		"client_id": clientID,
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := c.transport.PostJSON(ctx, "/prompt", payload, &result); err != nil {
		return "", err
	}
	if result.PromptID == "" {
		return "", &TransportError{
			Backend: c.transport.Backend(),
			Detail:  "no prompt_id in response",
		}
	}
	return result.PromptID, nil
}

// GetHistory returns the execution record for a prompt, or nil if the prompt
// has no history entry yet.
func (c *ComfyUIClient) GetHistory(ctx context.Context, promptID string) (*HistoryEntry, error) {
	var history map[string]HistoryEntry
	if err := c.transport.GetJSON(ctx, fmt.Sprintf("/history/%s", promptID), &history); err != nil {
		return nil, err
	}
	entry, ok := history[promptID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// GetQueueDepth returns the number of running and pending workflows.
func (c *ComfyUIClient) GetQueueDepth(ctx context.Context) (running, pending int, err error) {
	var info queueInfo
	if err := c.transport.GetJSON(ctx, "/queue", &info); err != nil {
		return 0, 0, err
	}
	return len(info.Running), len(info.Pending), nil
}

// DownloadFile streams one output file to w.
func (c *ComfyUIClient) DownloadFile(ctx context.Context, ref FileRef, w io.Writer) (string, error) {
	query := url.Values{}
	query.Set("filename", ref.Filename)
	fileType := ref.Type
	if fileType == "" {
		fileType = "output"
	}
	query.Set("type", fileType)
	if ref.Subfolder != "" {
		query.Set("subfolder", ref.Subfolder)
	}
	return c.transport.Download(ctx, "/view", query, w)
}

// IsConfigured returns true if the client has a base URL.
func (c *ComfyUIClient) IsConfigured() bool {
	return c.transport.BaseURL() != ""
}
