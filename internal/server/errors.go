package server

import (
	"errors"
	"net/http"

	auditdomain "github.com/marketlane/backoffice/internal/audit/domain"
	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type             string                 `json:"type"`
	Message          string                 `json:"message"`
	Errors           []ruledomain.FieldError `json:"errors,omitempty"`
	ConflictingRules []ruledomain.Response   `json:"conflicting_rules,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders the engine's error taxonomy: validation
// failures as 400 with the field list, missing rules as 404, overlapping
// scopes as 409 with the conflicting rule set attached, everything else as an
// opaque 500.
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

func invalidRequestError() error {
	verrs := &ruledomain.ValidationErrors{}
	verrs.Add("request", "invalid_request", "invalid request")
	return verrs
}

func newValidationError(field, code, message string) error {
	verrs := &ruledomain.ValidationErrors{}
	verrs.Add(field, code, message)
	return verrs
}

func mapError(err error) (int, errorPayload) {
	var verrs *ruledomain.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  verrs.Errors,
		}
	}

	var conflict *ruledomain.ConflictError
	if errors.As(err, &conflict) {
		rules := make([]ruledomain.Response, 0, len(conflict.Conflicts))
		for i := range conflict.Conflicts {
			rules = append(rules, conflictResponse(&conflict.Conflicts[i]))
		}
		return http.StatusConflict, errorPayload{
			Type:             "conflict",
			Message:          "an active rule already covers this scope and effective window",
			ConflictingRules: rules,
		}
	}

	switch {
	case errors.Is(err, ruledomain.ErrInvalidID),
		errors.Is(err, ruledomain.ErrInvalidFamily),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ruledomain.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "rule not found",
		}
	case errors.Is(err, ruledomain.ErrVersionConflict):
		return http.StatusConflict, errorPayload{
			Type:    "version_conflict",
			Message: "the rule was modified by another administrator; re-fetch and retry",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func conflictResponse(r *ruledomain.Rule) ruledomain.Response {
	return ruledomain.Response{
		ID:            r.ID.String(),
		Family:        r.Family,
		Name:          r.Name,
		ScopeKey:      r.ScopeKey,
		CategoryID:    r.CategoryID,
		Rate:          r.Rate,
		Priority:      r.Priority,
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		IsActive:      r.IsActive,
		Version:       r.Version,
	}
}
