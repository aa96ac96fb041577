package model

import "encoding/json"

// WorkflowRequest queues a ComfyUI workflow for execution. The workflow is the
// node graph in ComfyUI's API JSON format, passed through opaquely.
type WorkflowRequest struct {
	Workflow json.RawMessage `json:"workflow" validate:"required"`
	ClientID string          `json:"clientId,omitempty"`
}

// WorkflowQueueResponse reports ComfyUI queue depth.
type WorkflowQueueResponse struct {
	Running int `json:"running"`
	Pending int `json:"pending"`
}
