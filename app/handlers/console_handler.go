package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ConsoleHandlerInterface defines the contract for console handlers
type ConsoleHandlerInterface interface {
	AddGroupTarget(c fiber.Ctx) error
	AddDirectTarget(c fiber.Ctx) error
	RemoveTarget(c fiber.Ctx) error
	GetTarget(c fiber.Ctx) error
	ListTargets(c fiber.Ctx) error
	ListEligibleTargets(c fiber.Ctx) error
	StartDispatch(c fiber.Ctx) error
	StopDispatch(c fiber.Ctx) error
	GetCampaignStatus(c fiber.Ctx) error
	ListDeliveryLog(c fiber.Ctx) error
	DownloadDeliveryLog(c fiber.Ctx) error
}

// ConsoleHandler handles target, dispatch and report HTTP requests
type ConsoleHandler struct {
	registry     businessflow.TargetRegistry
	dispatchFlow businessflow.DispatchFlow
	verification businessflow.VerificationFlow
	reportFlow   businessflow.ReportFlow
	validator    *validator.Validate
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(
	registry businessflow.TargetRegistry,
	dispatchFlow businessflow.DispatchFlow,
	verification businessflow.VerificationFlow,
	reportFlow businessflow.ReportFlow,
) *ConsoleHandler {
	return &ConsoleHandler{
		registry:     registry,
		dispatchFlow: dispatchFlow,
		verification: verification,
		reportFlow:   reportFlow,
		validator:    validator.New(),
	}
}

func (h *ConsoleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ConsoleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// AddGroupTarget registers a group recipient
func (h *ConsoleHandler) AddGroupTarget(c fiber.Ctx) error {
	var req dto.AddGroupTargetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.ID
	}

	target, err := h.registry.AddTarget(h.createRequestContext(c, "/api/v1/targets/groups"), models.Target{
		ID:          req.ID,
		Kind:        models.TargetKindGroup,
		DisplayName: displayName,
		Status:      models.TargetStatusPending,
	})
	if err != nil {
		if businessflow.IsTargetAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Target already exists", "TARGET_ALREADY_EXISTS", nil)
		}
		if businessflow.IsTargetInputRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Target id is required", "TARGET_INPUT_REQUIRED", nil)
		}

		log.Println("Group target registration failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Target registration failed", "TARGET_REGISTRATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Target registered successfully", businessflow.ToTargetDTO(*target))
}

// AddDirectTarget registers an ad-hoc recipient and starts its verification
func (h *ConsoleHandler) AddDirectTarget(c fiber.Ctx) error {
	var req dto.AddDirectTargetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.verification.AddDirectTarget(h.createRequestContext(c, "/api/v1/targets/direct"), &req, metadata)
	if err != nil {
		if businessflow.IsTargetAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Target already exists", "TARGET_ALREADY_EXISTS", nil)
		}
		if businessflow.IsTargetInputRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Target input is required", "TARGET_INPUT_REQUIRED", nil)
		}

		log.Println("Direct target registration failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Target registration failed", "TARGET_REGISTRATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Target registered, verification started", result)
}

// RemoveTarget removes a target and cancels any pending verification
func (h *ConsoleHandler) RemoveTarget(c fiber.Ctx) error {
	targetID := c.Params("id")
	if targetID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Target id is required", "TARGET_INPUT_REQUIRED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.verification.RemoveTarget(h.createRequestContext(c, "/api/v1/targets/"+targetID), targetID, metadata)
	if err != nil {
		if businessflow.IsTargetNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Target not found", "TARGET_NOT_FOUND", nil)
		}

		log.Println("Target removal failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Target removal failed", "TARGET_REMOVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Target removed successfully", nil)
}

// GetTarget returns one target
func (h *ConsoleHandler) GetTarget(c fiber.Ctx) error {
	targetID := c.Params("id")
	if targetID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Target id is required", "TARGET_INPUT_REQUIRED", nil)
	}

	target, err := h.registry.GetTarget(h.createRequestContext(c, "/api/v1/targets/"+targetID), targetID)
	if err != nil {
		if businessflow.IsTargetNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Target not found", "TARGET_NOT_FOUND", nil)
		}

		log.Println("Target lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Target lookup failed", "TARGET_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Target retrieved successfully", businessflow.ToTargetDTO(*target))
}

// ListTargets returns targets matching the query filters
func (h *ConsoleHandler) ListTargets(c fiber.Ctx) error {
	var filter models.TargetFilter

	if kind := c.Query("kind"); kind != "" {
		k := models.TargetKind(kind)
		if !k.Valid() {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown target kind", "VALIDATION_ERROR", kind)
		}
		filter.Kind = &k
	}
	if status := c.Query("status"); status != "" {
		s := models.TargetStatus(status)
		if !s.Valid() {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown target status", "VALIDATION_ERROR", status)
		}
		filter.Status = &s
	}
	if blocked := c.Query("blocked"); blocked != "" {
		b := blocked == "true"
		filter.Blocked = &b
	}

	targets := h.registry.ListTargets(h.createRequestContext(c, "/api/v1/targets"), filter)

	out := make([]dto.TargetDTO, 0, len(targets))
	for _, target := range targets {
		out = append(out, businessflow.ToTargetDTO(target))
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Targets retrieved successfully", dto.ListTargetsResponse{
		Targets: out,
		Total:   len(out),
	})
}

// ListEligibleTargets returns the targets that pass the cooldown and block
// gate right now. An explicit cooldown_minutes query overrides the configured
// cooldown.
func (h *ConsoleHandler) ListEligibleTargets(c fiber.Ctx) error {
	var cooldown time.Duration
	if v := c.Query("cooldown_minutes"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid cooldown_minutes", "VALIDATION_ERROR", v)
		}
		cooldown = time.Duration(parsed) * time.Minute
	}

	targets := h.dispatchFlow.ListEligibleTargets(h.createRequestContext(c, "/api/v1/targets/eligible"), cooldown)

	out := make([]dto.TargetDTO, 0, len(targets))
	for _, target := range targets {
		out = append(out, businessflow.ToTargetDTO(target))
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Eligible targets retrieved successfully", dto.ListTargetsResponse{
		Targets: out,
		Total:   len(out),
	})
}

// StartDispatch starts a send campaign
func (h *ConsoleHandler) StartDispatch(c fiber.Ctx) error {
	var req dto.StartDispatchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.StartDispatch(h.createRequestContextWithTimeout(c, "/api/v1/dispatch", 90*time.Second), &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsEmptyMessage(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Message body is empty", "DISPATCH_EMPTY_MESSAGE", nil)
		case businessflow.IsNoTargets(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No sendable targets", "DISPATCH_NO_TARGETS", nil)
		case businessflow.IsTargetNotFound(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown target in selection", "TARGET_NOT_FOUND", nil)
		case businessflow.IsVerificationInProgress(err):
			return h.ErrorResponse(c, fiber.StatusConflict, "A selected target is still being verified", "DISPATCH_VERIFICATION_IN_PROGRESS", nil)
		case businessflow.IsResolveFailed(err):
			return h.ErrorResponse(c, fiber.StatusConflict, "A selected target failed verification", "DISPATCH_RESOLVE_FAILED", nil)
		case businessflow.IsDispatchInFlight(err):
			return h.ErrorResponse(c, fiber.StatusConflict, "Another dispatch is already running for a selected target", "DISPATCH_IN_FLIGHT", nil)
		case businessflow.IsDispatchTransport(err):
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Send backend is unreachable", "DISPATCH_TRANSPORT_FAILED", nil)
		}

		log.Println("Dispatch failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Dispatch failed", "DISPATCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Dispatch started successfully", result)
}

// StopDispatch stops a running campaign; already submitted batches are unaffected
func (h *ConsoleHandler) StopDispatch(c fiber.Ctx) error {
	campaignID := c.Params("id")
	if campaignID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign id is required", "VALIDATION_ERROR", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.dispatchFlow.StopDispatch(h.createRequestContext(c, "/api/v1/dispatch/"+campaignID+"/stop"), campaignID, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}

		log.Println("Dispatch stop failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Dispatch stop failed", "DISPATCH_STOP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch stopped", nil)
}

// GetCampaignStatus returns the live aggregates of a campaign
func (h *ConsoleHandler) GetCampaignStatus(c fiber.Ctx) error {
	campaignID := c.Params("id")
	if campaignID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign id is required", "VALIDATION_ERROR", nil)
	}

	result, err := h.dispatchFlow.GetCampaignStatus(h.createRequestContext(c, "/api/v1/dispatch/"+campaignID), campaignID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}

		log.Println("Campaign status lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign status lookup failed", "CAMPAIGN_STATUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign status retrieved successfully", result)
}

// ListDeliveryLog returns a page of the delivery log
func (h *ConsoleHandler) ListDeliveryLog(c fiber.Ctx) error {
	req := h.deliveryLogRequestFromQuery(c)
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.reportFlow.ListDeliveryLog(h.createRequestContext(c, "/api/v1/delivery-log"), req, metadata)
	if err != nil {
		var businessErr *businessflow.BusinessError
		if errors.As(err, &businessErr) && businessErr.Code == "VALIDATION_ERROR" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, businessErr.Message, businessErr.Code, nil)
		}

		log.Println("Delivery log listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Delivery log listing failed", "DELIVERY_LOG_QUERY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery log retrieved successfully", result)
}

// DownloadDeliveryLog streams the delivery log as an Excel workbook
func (h *ConsoleHandler) DownloadDeliveryLog(c fiber.Ctx) error {
	req := h.deliveryLogRequestFromQuery(c)

	filename, payload, err := h.reportFlow.DownloadDeliveryLogExcel(h.createRequestContextWithTimeout(c, "/api/v1/delivery-log/export", 2*time.Minute), req)
	if err != nil {
		if businessflow.IsReportEmpty(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No rows match the report filter", "REPORT_EMPTY", nil)
		}

		log.Println("Delivery log export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Delivery log export failed", "DELIVERY_LOG_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(payload)
}

func (h *ConsoleHandler) deliveryLogRequestFromQuery(c fiber.Ctx) *dto.ListDeliveryLogRequest {
	req := &dto.ListDeliveryLogRequest{}
	if v := c.Query("campaign_id"); v != "" {
		req.CampaignID = &v
	}
	if v := c.Query("target_id"); v != "" {
		req.TargetID = &v
	}
	if v := c.Query("status"); v != "" {
		req.Status = &v
	}
	if v := c.Query("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			req.Page = parsed
		}
	}
	if v := c.Query("page_size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			req.PageSize = parsed
		}
	}
	return req
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ConsoleHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *ConsoleHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "timeout", timeout)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
