package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/pkg/response"
)

// SeparateHandler serves the stem-separation job endpoints.
type SeparateHandler struct {
	service   *service.JobService
	orch      *orchestrator.SeparationOrchestrator
	validator *validator.Validate
}

func NewSeparateHandler(svc *service.JobService, orch *orchestrator.SeparationOrchestrator, v *validator.Validate) *SeparateHandler {
	return &SeparateHandler{
		service:   svc,
		orch:      orch,
		validator: v,
	}
}

// Start handles POST /api/separate/start
func (h *SeparateHandler) Start(c *fiber.Ctx) error {
	var req model.SeparateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartSeparation(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/separate/status/:jobId
func (h *SeparateHandler) Status(c *fiber.Ctx) error {
	return jobStatus(c, h.service)
}

// Result handles GET /api/separate/result/:jobId
func (h *SeparateHandler) Result(c *fiber.Ctx) error {
	return jobResult(c, h.service)
}

// Cancel handles POST /api/separate/cancel/:jobId
func (h *SeparateHandler) Cancel(c *fiber.Ctx) error {
	return jobCancel(c, h.service)
}

// Models handles GET /api/separate/models
func (h *SeparateHandler) Models(c *fiber.Ctx) error {
	models, err := h.orch.Models(c.Context())
	if err != nil {
		return backendError(c, err)
	}
	return response.OK(c, model.ModelListResponse{Models: models})
}
