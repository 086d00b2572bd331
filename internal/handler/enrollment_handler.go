package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/enrollment-service/internal/gateway"
	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/internal/service"
)

// EnrollmentServiceInterface defines the enrollment business logic
// consumed by the HTTP layer.
type EnrollmentServiceInterface interface {
	Register(ctx context.Context, req *model.RegisterEnrollmentRequest) (*model.RegistrationResult, error)
	ProcessPayment(ctx context.Context, enrollmentID string, details gateway.MethodDetails) (*model.Enrollment, error)
	Activate(ctx context.Context, enrollmentID string) (*model.ActivationResult, error)
	RetryActivation(ctx context.Context, enrollmentID string) (*model.ActivationResult, error)
	Cancel(ctx context.Context, enrollmentID string) (*model.Enrollment, error)
	GetStatus(ctx context.Context, enrollmentID string) (*model.EnrollmentDetail, error)
	ListUserEnrollments(ctx context.Context, userID int64, statusFilter string, page, limit int) (*model.EnrollmentPage, error)
	CheckAccess(ctx context.Context, userID, courseID int64) (*model.AccessCheckResult, error)
}

// EnrollmentHandler handles HTTP requests for the enrollment workflow.
type EnrollmentHandler struct {
	service   EnrollmentServiceInterface
	validator *validator.Validate
}

// NewEnrollmentHandler creates a new EnrollmentHandler with the given
// service and validator.
func NewEnrollmentHandler(svc EnrollmentServiceInterface, v *validator.Validate) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, validator: v}
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message, "code": code})
}

// formatRegisterValidationError converts validator errors to per-field
// messages for registration requests.
func formatRegisterValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "UserID":
				return "invalid request: user_id is required and must be positive"
			case "CourseID":
				return "invalid request: course_id is required and must be positive"
			case "FullName":
				if tag == "required" || tag == "notblank" {
					return "invalid request: full_name is required"
				}
				return "invalid request: full_name must be 2-100 letters, spaces, hyphens or apostrophes"
			case "Email":
				if tag == "required" {
					return "invalid request: email is required"
				}
				if tag == "max" {
					return "invalid request: email exceeds maximum length of 255"
				}
				return "invalid request: email format is invalid"
			case "DiscountCode":
				return "invalid request: discount_code is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// Register handles POST /api/enrollments requests to start the course
// registration workflow.
func (h *EnrollmentHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterEnrollmentRequest

	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", formatRegisterValidationError(err))
	}

	result, err := h.service.Register(c.Context(), &req)
	if err != nil {
		var discountErr *service.DiscountError
		switch {
		case errors.As(err, &discountErr):
			return errorJSON(c, fiber.StatusBadRequest, "INVALID_DISCOUNT", discountErr.Message)
		case errors.Is(err, service.ErrDuplicateEnrollment):
			return errorJSON(c, fiber.StatusConflict, "DUPLICATE_ENROLLMENT", service.ErrDuplicateEnrollment.Error())
		case errors.Is(err, service.ErrCourseNotFound):
			return errorJSON(c, fiber.StatusBadRequest, "COURSE_NOT_FOUND", service.ErrCourseNotFound.Error())
		case errors.Is(err, service.ErrUserNotFound):
			return errorJSON(c, fiber.StatusBadRequest, "USER_NOT_FOUND", service.ErrUserNotFound.Error())
		case errors.Is(err, service.ErrValidation):
			return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Int64("user_id", req.UserID).
			Int64("course_id", req.CourseID).
			Msg("failed to register enrollment")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("enrollment_id", result.Enrollment.ID).
		Int64("user_id", req.UserID).
		Int64("course_id", req.CourseID).
		Bool("payment_required", result.PaymentRequired).
		Msg("enrollment registered")

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ProcessPayment handles POST /api/enrollments/:id/payments requests.
func (h *EnrollmentHandler) ProcessPayment(c *fiber.Ctx) error {
	enrollmentID := c.Params("id")

	var req model.ProcessPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request: payment_method is required")
	}

	details, err := gateway.BuildDetails(req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_PAYMENT_METHOD", "invalid payment method")
	}

	enrollment, err := h.service.ProcessPayment(c.Context(), enrollmentID, details)
	if err != nil {
		var missingErr *gateway.MissingFieldError
		var paymentErr *service.PaymentError
		switch {
		case errors.As(err, &missingErr):
			return errorJSON(c, fiber.StatusBadRequest, gateway.CodeMissingPaymentData, missingErr.Error())
		case errors.As(err, &paymentErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":            "payment failed",
				"code":             paymentErr.Code,
				"payment_error":    paymentErr.Message,
				"gateway_response": paymentErr.GatewayResponse,
			})
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return errorJSON(c, fiber.StatusNotFound, "ENROLLMENT_NOT_FOUND", service.ErrEnrollmentNotFound.Error())
		case errors.Is(err, service.ErrPaymentNotPending):
			return errorJSON(c, fiber.StatusBadRequest, "NOT_PENDING_PAYMENT", service.ErrPaymentNotPending.Error())
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("enrollment_id", enrollmentID).
			Msg("failed to process payment")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("enrollment_id", enrollmentID).
		Str("status", string(enrollment.Status)).
		Msg("payment completed")

	return c.JSON(enrollment)
}

// Activate handles POST /api/enrollments/:id/activate requests. Safe to
// call repeatedly.
func (h *EnrollmentHandler) Activate(c *fiber.Ctx) error {
	enrollmentID := c.Params("id")

	result, err := h.service.Activate(c.Context(), enrollmentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return errorJSON(c, fiber.StatusNotFound, "ENROLLMENT_NOT_FOUND", service.ErrEnrollmentNotFound.Error())
		case errors.Is(err, service.ErrNotEligibleForActivation):
			return errorJSON(c, fiber.StatusBadRequest, "NOT_ELIGIBLE_FOR_ACTIVATION", service.ErrNotEligibleForActivation.Error())
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("enrollment_id", enrollmentID).
			Msg("failed to activate enrollment")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(result)
}

// RetryActivation handles POST /api/enrollments/:id/activate/retry requests.
func (h *EnrollmentHandler) RetryActivation(c *fiber.Ctx) error {
	enrollmentID := c.Params("id")

	result, err := h.service.RetryActivation(c.Context(), enrollmentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return errorJSON(c, fiber.StatusNotFound, "ENROLLMENT_NOT_FOUND", service.ErrEnrollmentNotFound.Error())
		case errors.Is(err, service.ErrNoRetriesAvailable):
			return errorJSON(c, fiber.StatusBadRequest, "NO_RETRIES_AVAILABLE", service.ErrNoRetriesAvailable.Error())
		case errors.Is(err, service.ErrNotEligibleForActivation):
			return errorJSON(c, fiber.StatusBadRequest, "NOT_ELIGIBLE_FOR_ACTIVATION", service.ErrNotEligibleForActivation.Error())
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("enrollment_id", enrollmentID).
			Msg("failed to retry activation")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(result)
}

// Cancel handles POST /api/enrollments/:id/cancel requests.
func (h *EnrollmentHandler) Cancel(c *fiber.Ctx) error {
	enrollmentID := c.Params("id")

	enrollment, err := h.service.Cancel(c.Context(), enrollmentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return errorJSON(c, fiber.StatusNotFound, "ENROLLMENT_NOT_FOUND", service.ErrEnrollmentNotFound.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			return errorJSON(c, fiber.StatusBadRequest, "INVALID_TRANSITION", err.Error())
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("enrollment_id", enrollmentID).
			Msg("failed to cancel enrollment")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(enrollment)
}

// GetStatus handles GET /api/enrollments/:id requests.
func (h *EnrollmentHandler) GetStatus(c *fiber.Ctx) error {
	enrollmentID := c.Params("id")

	detail, err := h.service.GetStatus(c.Context(), enrollmentID)
	if err != nil {
		if errors.Is(err, service.ErrEnrollmentNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "ENROLLMENT_NOT_FOUND", service.ErrEnrollmentNotFound.Error())
		}
		log.Error().
			Err(err).
			Str("enrollment_id", enrollmentID).
			Msg("failed to get enrollment status")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(detail)
}

// ListUserEnrollments handles GET /api/users/:id/enrollments requests.
func (h *EnrollmentHandler) ListUserEnrollments(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || userID <= 0 {
		return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request: user id must be a positive integer")
	}
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	status := c.Query("status")

	result, err := h.service.ListUserEnrollments(c.Context(), userID, status, page, limit)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		}
		log.Error().
			Err(err).
			Int64("user_id", userID).
			Msg("failed to list user enrollments")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(result)
}

// CheckAccess handles GET /api/courses/:id/access requests.
func (h *EnrollmentHandler) CheckAccess(c *fiber.Ctx) error {
	courseID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || courseID <= 0 {
		return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request: course id must be a positive integer")
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return errorJSON(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request: user_id query parameter is required")
	}

	result, err := h.service.CheckAccess(c.Context(), userID, courseID)
	if err != nil {
		log.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("course_id", courseID).
			Msg("failed to check course access")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(result)
}
