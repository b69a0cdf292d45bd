package server

import (
	"errors"

	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
)

func mutationOutcome(err error) string {
	if err == nil {
		return "ok"
	}

	var verrs *ruledomain.ValidationErrors
	if errors.As(err, &verrs) {
		return "validation_error"
	}
	var conflict *ruledomain.ConflictError
	if errors.As(err, &conflict) {
		return "conflict"
	}
	switch {
	case errors.Is(err, ruledomain.ErrNotFound), errors.Is(err, ruledomain.ErrInvalidID):
		return "not_found"
	case errors.Is(err, ruledomain.ErrVersionConflict):
		return "version_conflict"
	}
	return "error"
}

func isConflict(err error) bool {
	var conflict *ruledomain.ConflictError
	return errors.As(err, &conflict)
}
