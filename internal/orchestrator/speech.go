package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/telemetry"
)

// SpeechOrchestrator wraps LocalAI's synchronous audio endpoints. There is no
// submit/poll/fetch cycle here: the HTTP response body is the artifact, so
// each operation streams it straight to a file in the output directory.
type SpeechOrchestrator struct {
	client *client.LocalAIClient
	dir    string
}

// NewSpeechOrchestrator creates a speech orchestrator writing into outputDir.
func NewSpeechOrchestrator(c *client.LocalAIClient, outputDir string) *SpeechOrchestrator {
	return &SpeechOrchestrator{client: c, dir: outputDir}
}

// Health reports backend reachability.
func (o *SpeechOrchestrator) Health(ctx context.Context) error {
	return o.client.Health(ctx)
}

// Models lists the models the backend reports.
func (o *SpeechOrchestrator) Models(ctx context.Context) ([]string, error) {
	return o.client.ListModels(ctx)
}

// Synthesize converts text to speech and saves the audio locally. Defaults
// mirror the OpenAI-compatible endpoint: model tts-1, voice alloy, mp3.
func (o *SpeechOrchestrator) Synthesize(ctx context.Context, req *model.TTSRequest) (*model.SpeechFileResponse, error) {
	if req.Text == "" {
		return nil, &ValidationError{Field: "text", Reason: "required"}
	}

	params := &client.TTSParams{
		Model:          req.Model,
		Input:          req.Text,
		Voice:          req.Voice,
		ResponseFormat: req.ResponseFormat,
		Speed:          req.Speed,
	}
	if params.Model == "" {
		params.Model = "tts-1"
	}
	if params.Voice == "" {
		params.Voice = "alloy"
	}
	if params.ResponseFormat == "" {
		params.ResponseFormat = "mp3"
	}
	if params.Speed == 0 {
		params.Speed = 1.0
	}

	path, contentType, err := o.streamToFile(ctx, "localai_tts", req.Text, params.ResponseFormat,
		func(ctx context.Context, w *os.File) (string, error) {
			return o.client.TextToSpeech(ctx, params, w)
		})
	if err != nil {
		return nil, err
	}

	return &model.SpeechFileResponse{
		Path:        path,
		ContentType: contentType,
		Model:       params.Model,
		Voice:       params.Voice,
	}, nil
}

// Generate produces audio from a free-text prompt and saves it locally.
func (o *SpeechOrchestrator) Generate(ctx context.Context, req *model.GenerateAudioRequest) (*model.SpeechFileResponse, error) {
	if req.Prompt == "" {
		return nil, &ValidationError{Field: "prompt", Reason: "required"}
	}

	params := &client.AudioGenParams{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Duration:    req.Duration,
		Temperature: req.Temperature,
		TopK:        req.TopK,
		TopP:        req.TopP,
	}
	if params.Model == "" {
		params.Model = "musicgen"
	}

	path, contentType, err := o.streamToFile(ctx, "localai_audio", req.Prompt, "wav",
		func(ctx context.Context, w *os.File) (string, error) {
			return o.client.GenerateAudio(ctx, params, w)
		})
	if err != nil {
		return nil, err
	}

	return &model.SpeechFileResponse{
		Path:        path,
		ContentType: contentType,
		Model:       params.Model,
	}, nil
}

// Transcribe uploads an audio file for speech-to-text.
func (o *SpeechOrchestrator) Transcribe(ctx context.Context, audioPath string, req *model.TranscribeRequest) (*model.TranscribeResponse, error) {
	if audioPath == "" {
		return nil, &ValidationError{Field: "audioPath", Reason: "required"}
	}
	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, &ValidationError{Field: "audioPath", Reason: fmt.Sprintf("file not found: %s", audioPath)}
	}
	defer audio.Close()

	fields := map[string]string{"model": req.Model}
	if fields["model"] == "" {
		fields["model"] = "whisper-1"
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.Prompt != "" {
		fields["prompt"] = req.Prompt
	}
	if req.Temperature != 0 {
		fields["temperature"] = formatFloat(req.Temperature, 0)
	}

	upload := client.FileUpload{
		Field:    "file",
		Filename: filepath.Base(audioPath),
		Reader:   audio,
	}
	result, err := o.client.Transcribe(ctx, fields, upload)
	if err != nil {
		return nil, err
	}
	return &model.TranscribeResponse{Text: result.Text}, nil
}

func (o *SpeechOrchestrator) streamToFile(ctx context.Context, prefix, source, ext string, write func(context.Context, *os.File) (string, error)) (string, string, error) {
	path, err := allocateOutputPath(o.dir, prefix, source, ext)
	if err != nil {
		return "", "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to create file: %w", err)
	}

	contentType, err := write(ctx, file)
	if err != nil {
		file.Close()
		os.Remove(path)
		return "", "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("failed to close file: %w", err)
	}

	telemetry.ArtifactsFetched.WithLabelValues("LocalAI").Inc()
	return path, contentType, nil
}
