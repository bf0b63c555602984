package shared

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

// ListResponse is the JSON envelope of catalog listings.
type ListResponse[T any] struct {
	Items      []T `json:"items"`
	Pagination any `json:"pagination"`
}

// Decode parses the body into target and runs struct validation. It writes
// the problem response itself and returns false on failure.
func Decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := v.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			httpx.ProblemWithMeta(w, http.StatusBadRequest, "Validation Failed",
				fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()),
				map[string]any{"field": fe.Field(), "rule": fe.Tag()})
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// PathID parses the {id} URL parameter.
func PathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// RespondError writes err as a problem response, logging unexpected failures.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var field *FieldError
	switch {
	case errors.As(err, &field):
		httpx.ProblemWithMeta(w, http.StatusBadRequest, "Validation Failed", field.Error(), map[string]any{"field": field.Field})
		return
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate), errors.Is(err, ErrInUse):
	default:
		logger.Error("catalog request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
