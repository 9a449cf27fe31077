package httpapi

import (
	"errors"
	"strconv"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/lifecycle"
	"github.com/dmitrijs2005/laplink/internal/server/otp"
	"github.com/dmitrijs2005/laplink/internal/server/storage"
	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// errorHandler renders every error returned by a handler or middleware.
func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	status, body := s.classify(err)
	if status == fiber.StatusTooManyRequests {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(body.RetryAfter))
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}

func (s *HTTPServer) classify(err error) (int, errorResponse) {
	var rl *common.RateLimitedError
	if errors.As(err, &rl) {
		return fiber.StatusTooManyRequests, errorResponse{
			Message:    "Please wait " + strconv.Itoa(rl.Seconds()) + "s before trying again.",
			RetryAfter: rl.Seconds(),
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, errorResponse{Message: fe.Message}
	}

	switch {
	case errors.Is(err, otp.ErrExpired):
		return fiber.StatusBadRequest, errorResponse{Message: "OTP expired or invalid"}
	case errors.Is(err, otp.ErrMismatch):
		return fiber.StatusBadRequest, errorResponse{Message: "Invalid OTP"}
	case errors.Is(err, common.ErrInvalidCredentials):
		return fiber.StatusBadRequest, errorResponse{Message: err.Error()}
	case errors.Is(err, common.ErrValidation):
		return fiber.StatusBadRequest, errorResponse{Message: err.Error()}
	case errors.Is(err, common.ErrUnauthenticated):
		return fiber.StatusUnauthorized, errorResponse{Message: "Unauthorized"}
	case errors.Is(err, common.ErrEmailNotVerified):
		return fiber.StatusForbidden, errorResponse{Message: "Please verify your email first."}
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden, errorResponse{Message: "Forbidden"}
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound, errorResponse{Message: "Not found"}
	case errors.Is(err, common.ErrAlreadyExists):
		return fiber.StatusConflict, errorResponse{Message: "User already exists"}
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, lifecycle.ErrTerminalStatus),
		errors.Is(err, lifecycle.ErrStatusConflict):
		return fiber.StatusConflict, errorResponse{Message: err.Error()}
	case errors.Is(err, common.ErrDependency), errors.Is(err, storage.ErrNotConfigured):
		return fiber.StatusServiceUnavailable, errorResponse{Message: "Service temporarily unavailable, please retry"}
	default:
		return fiber.StatusInternalServerError, errorResponse{Message: "Internal server error"}
	}
}
