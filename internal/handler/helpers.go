package handler

import (
	"context"
	"errors"
	"net/http"

	"assetdrop/internal/domain"
	"assetdrop/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	problem := problemFor(err)
	httputil.RespondErrorWithExtras(w, problem.Status, problem.Detail, problem.Extra)
}

// handleErrorOr maps domain validation errors as usual and everything else to status.
func handleErrorOr(w http.ResponseWriter, err error, status int, detail string) {
	if errors.Is(err, domain.ErrValidation) {
		handleError(w, err)
		return
	}
	httputil.RespondError(w, status, detail)
}

// problemFor maps an error to its problem details.
func problemFor(err error) httputil.ProblemDetail {
	var (
		conflictErr  *domain.ConflictError
		scanLimitErr *domain.ScanLimitError
		storeErr     *domain.StoreError
	)

	switch {
	case errors.As(err, &scanLimitErr):
		return problem(http.StatusUnprocessableEntity, scanLimitErr.Error(), map[string]interface{}{
			"limit": scanLimitErr.Limit,
		})
	case errors.As(err, &storeErr):
		return problem(http.StatusBadGateway, "saving failed; the batch was kept and can be submitted again", nil)
	case errors.Is(err, domain.ErrValidation):
		return problem(http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return problem(http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		return problem(http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, domain.ErrForbidden):
		return problem(http.StatusForbidden, err.Error(), nil)
	case errors.As(err, &conflictErr):
		return problem(http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.Is(err, domain.ErrBatchBusy):
		return problem(http.StatusConflict, err.Error(), nil)
	case errors.Is(err, domain.ErrCorruptForest):
		return problem(http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, context.Canceled):
		return problem(http.StatusConflict, "submit was cancelled", nil)
	default:
		return problem(http.StatusInternalServerError, "internal server error", nil)
	}
}

func problem(status int, detail string, extra map[string]interface{}) httputil.ProblemDetail {
	return httputil.ProblemDetail{
		Type:   httputil.ErrorTypeFromStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extra,
	}
}
