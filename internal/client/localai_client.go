package client

import (
	"context"
	"io"
	"time"

	"github.com/audiobridge/api/internal/config"
)

// LocalAIClient talks to a LocalAI server. All of its operations are
// synchronous: the response body is the artifact or the transcript.
type LocalAIClient struct {
	transport *Transport
}

// TTSParams is the wire shape of a speech synthesis request.
type TTSParams struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// AudioGenParams is the wire shape of a prompt-driven audio generation request.
type AudioGenParams struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Duration    float64 `json:"duration,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// TranscriptionResult is the JSON transcription response.
type TranscriptionResult struct {
	Text string `json:"text"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewLocalAIClient creates a new LocalAI client.
func NewLocalAIClient(cfg *config.BackendConfig) *LocalAIClient {
	return &LocalAIClient{
		transport: NewTransport("LocalAI", cfg.BaseURL, time.Duration(cfg.Timeout)*time.Second),
	}
}

// Health checks the server's readiness endpoint.
func (c *LocalAIClient) Health(ctx context.Context) error {
	return c.transport.Healthy(ctx, "/readyz")
}

// TextToSpeech synthesizes speech and streams the audio to w. Returns the
// response content type.
func (c *LocalAIClient) TextToSpeech(ctx context.Context, params *TTSParams, w io.Writer) (string, error) {
	return c.transport.PostBinary(ctx, "/v1/audio/speech", params, w)
}

// GenerateAudio generates audio from a text prompt and streams it to w.
func (c *LocalAIClient) GenerateAudio(ctx context.Context, params *AudioGenParams, w io.Writer) (string, error) {
	return c.transport.PostBinary(ctx, "/v1/audio/generations", params, w)
}

// Transcribe uploads an audio file for speech-to-text.
func (c *LocalAIClient) Transcribe(ctx context.Context, fields map[string]string, file FileUpload) (*TranscriptionResult, error) {
	var result TranscriptionResult
	if err := c.transport.PostMultipart(ctx, "/v1/audio/transcriptions", fields, []FileUpload{file}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListModels returns the model identifiers the server reports.
func (c *LocalAIClient) ListModels(ctx context.Context) ([]string, error) {
	var list modelList
	if err := c.transport.GetJSON(ctx, "/v1/models", &list); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// IsConfigured returns true if the client has a base URL.
func (c *LocalAIClient) IsConfigured() bool {
	return c.transport.BaseURL() != ""
}
