package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/pkg/response"
)

// WorkflowHandler serves the ComfyUI workflow job endpoints.
type WorkflowHandler struct {
	service   *service.JobService
	orch      *orchestrator.WorkflowOrchestrator
	validator *validator.Validate
}

func NewWorkflowHandler(svc *service.JobService, orch *orchestrator.WorkflowOrchestrator, v *validator.Validate) *WorkflowHandler {
	return &WorkflowHandler{
		service:   svc,
		orch:      orch,
		validator: v,
	}
}

// Start handles POST /api/workflow/start
func (h *WorkflowHandler) Start(c *fiber.Ctx) error {
	var req model.WorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartWorkflow(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/workflow/status/:jobId
func (h *WorkflowHandler) Status(c *fiber.Ctx) error {
	return jobStatus(c, h.service)
}

// Result handles GET /api/workflow/result/:jobId
func (h *WorkflowHandler) Result(c *fiber.Ctx) error {
	return jobResult(c, h.service)
}

// Cancel handles POST /api/workflow/cancel/:jobId
func (h *WorkflowHandler) Cancel(c *fiber.Ctx) error {
	return jobCancel(c, h.service)
}

// Queue handles GET /api/workflow/queue
func (h *WorkflowHandler) Queue(c *fiber.Ctx) error {
	running, pending, err := h.orch.QueueDepth(c.Context())
	if err != nil {
		return backendError(c, err)
	}
	return response.OK(c, model.WorkflowQueueResponse{Running: running, Pending: pending})
}
