package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/pkg/response"
)

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}

// backendError maps orchestrator and transport errors onto the response
// envelope. Validation problems are the caller's fault, transport problems
// are the backend's.
func backendError(c *fiber.Ctx, err error) error {
	var validation *orchestrator.ValidationError
	if errors.As(err, &validation) {
		return response.ValidationError(c, validation.Error(), nil)
	}
	var transport *client.TransportError
	if errors.As(err, &transport) {
		return response.BackendError(c, transport.Error())
	}
	return response.ServiceError(c, err.Error())
}

// jobStatus serves the shared status lookup of the job endpoints.
func jobStatus(c *fiber.Ctx, svc *service.JobService) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := svc.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// jobResult serves the shared result lookup of the job endpoints.
func jobResult(c *fiber.Ctx, svc *service.JobService) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := svc.GetResult(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotCompleted) {
			return jobNotCompleted(c, svc, jobID)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// jobNotCompleted distinguishes the non-succeeded outcomes when a result is
// requested: a failed or timed-out job is terminal and reports its error, a
// job still in flight just is not done yet.
func jobNotCompleted(c *fiber.Ctx, svc *service.JobService, jobID string) error {
	status, err := svc.GetStatus(c.Context(), jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	switch status.Status {
	case model.RecordStatusFailed:
		detail := ""
		if status.Error != nil {
			detail = *status.Error
		}
		return response.JobFailed(c, "Job failed", detail)
	case model.RecordStatusTimedOut:
		return response.JobTimeout(c, "Job timed out before completing")
	case model.RecordStatusCanceled:
		return response.ValidationError(c, "Job was canceled", nil)
	default:
		return response.ValidationError(c, "Job not completed yet", nil)
	}
}

// jobCancel serves the shared cancel operation of the job endpoints.
func jobCancel(c *fiber.Ctx, svc *service.JobService) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := svc.Cancel(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job already completed" {
			return response.ValidationError(c, "Job already completed", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
