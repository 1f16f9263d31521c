package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/smallbiznis/uprl/internal/event"
	"github.com/smallbiznis/uprl/internal/identity"
	ingestdomain "github.com/smallbiznis/uprl/internal/ingest/domain"
	projectiondomain "github.com/smallbiznis/uprl/internal/projection/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, ingestdomain.ErrVersionConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ingestdomain.ErrStorage):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, projectiondomain.ErrProjection):
		return http.StatusInternalServerError, errorPayload{
			Type:    "projection_error",
			Message: "projection failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, event.ErrValidation),
		errors.Is(err, identity.ErrIdentity),
		errors.Is(err, version.ErrUnknownFamily),
		errors.Is(err, version.ErrFamilyReserved),
		errors.Is(err, version.ErrEmptyScope):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, version.ErrUnknownFamily):
		return "unknown_version_family"
	case errors.Is(err, version.ErrFamilyReserved):
		return "version_family_reserved"
	case errors.Is(err, version.ErrEmptyScope):
		return "empty_version_scope"
	case errors.Is(err, identity.ErrIdentity):
		return "identity_error"
	default:
		return strings.TrimPrefix(err.Error(), "validation_error: ")
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "unknown_version_family", "version_family_reserved":
		return "family"
	case "empty_version_scope":
		return "order_id"
	default:
		if strings.HasPrefix(code, "missing_") {
			return strings.TrimPrefix(code, "missing_")
		}
		return ""
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger the coarse error class
// without the envelope machinery above.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	switch {
	case isValidationError(err) || asValidationErrors(err) != nil:
		return "validation_error", validationErrorCode(err)
	case errors.Is(err, ingestdomain.ErrVersionConflict):
		return "conflict", "version_conflict"
	case isNotFoundError(err):
		return "not_found", "not_found"
	case errors.Is(err, ingestdomain.ErrStorage), errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable", "storage_error"
	case errors.Is(err, projectiondomain.ErrProjection):
		return "projection_error", "projection_error"
	default:
		return "internal_error", "internal_error"
	}
}
