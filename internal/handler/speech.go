package handler

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/pkg/response"
)

// SpeechHandler serves the synchronous LocalAI endpoints. These block for the
// duration of the backend call; the artifact is on disk when they return.
type SpeechHandler struct {
	orch      *orchestrator.SpeechOrchestrator
	validator *validator.Validate
}

func NewSpeechHandler(orch *orchestrator.SpeechOrchestrator, v *validator.Validate) *SpeechHandler {
	return &SpeechHandler{
		orch:      orch,
		validator: v,
	}
}

// TTS handles POST /api/speech/tts
func (h *SpeechHandler) TTS(c *fiber.Ctx) error {
	var req model.TTSRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.orch.Synthesize(c.Context(), &req)
	if err != nil {
		return backendError(c, err)
	}

	return response.Created(c, result)
}

// Generate handles POST /api/speech/generate
func (h *SpeechHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateAudioRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.orch.Generate(c.Context(), &req)
	if err != nil {
		return backendError(c, err)
	}

	return response.Created(c, result)
}

// Transcribe handles POST /api/speech/transcribe
func (h *SpeechHandler) Transcribe(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Audio file is required", nil)
	}

	req := model.TranscribeRequest{
		Model:    c.FormValue("model"),
		Language: c.FormValue("language"),
		Prompt:   c.FormValue("prompt"),
	}
	if v := c.FormValue("temperature"); v != "" {
		req.Temperature, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return response.ValidationError(c, "Invalid temperature", nil)
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	// Spool the upload to a temp file so the backend client can stream it.
	tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, tmpPath); err != nil {
		return response.ServiceError(c, "Failed to save upload")
	}
	defer os.Remove(tmpPath)

	result, err := h.orch.Transcribe(c.Context(), tmpPath, &req)
	if err != nil {
		return backendError(c, err)
	}

	return response.OK(c, result)
}

// Models handles GET /api/speech/models
func (h *SpeechHandler) Models(c *fiber.Ctx) error {
	models, err := h.orch.Models(c.Context())
	if err != nil {
		return backendError(c, err)
	}
	return response.OK(c, model.ModelListResponse{Models: models})
}
