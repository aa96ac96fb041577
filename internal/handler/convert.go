package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/pkg/response"
)

// ConvertHandler serves the voice-conversion job endpoints.
type ConvertHandler struct {
	service   *service.JobService
	orch      *orchestrator.ConversionOrchestrator
	validator *validator.Validate
}

func NewConvertHandler(svc *service.JobService, orch *orchestrator.ConversionOrchestrator, v *validator.Validate) *ConvertHandler {
	return &ConvertHandler{
		service:   svc,
		orch:      orch,
		validator: v,
	}
}

// Start handles POST /api/convert/start
func (h *ConvertHandler) Start(c *fiber.Ctx) error {
	var req model.ConvertRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartConversion(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/convert/status/:jobId
func (h *ConvertHandler) Status(c *fiber.Ctx) error {
	return jobStatus(c, h.service)
}

// Result handles GET /api/convert/result/:jobId
func (h *ConvertHandler) Result(c *fiber.Ctx) error {
	return jobResult(c, h.service)
}

// Cancel handles POST /api/convert/cancel/:jobId
func (h *ConvertHandler) Cancel(c *fiber.Ctx) error {
	return jobCancel(c, h.service)
}

// Models handles GET /api/convert/models
func (h *ConvertHandler) Models(c *fiber.Ctx) error {
	models, err := h.orch.Models(c.Context())
	if err != nil {
		return backendError(c, err)
	}
	return response.OK(c, model.VoiceModelListResponse{Models: models})
}

// ModelInfo handles GET /api/convert/models/:name
func (h *ConvertHandler) ModelInfo(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return response.ValidationError(c, "Model name is required", nil)
	}

	info, err := h.orch.ModelInfo(c.Context(), name)
	if err != nil {
		return backendError(c, err)
	}
	return response.OK(c, info)
}
