package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/storefront/internal/application"
	"github.com/viralforge/storefront/internal/domain"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", "invalid request"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED", "please log in"
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, "FORBIDDEN", "you are not allowed to view this page"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "page not found"
	case errors.Is(err, domain.ErrFetchFailed), errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "something went wrong, please try again"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func statusForKind(kind application.ErrorKind) int {
	switch kind {
	case application.ErrorKindNotFound:
		return http.StatusNotFound
	case application.ErrorKindNotAuthorized:
		return http.StatusForbidden
	case application.ErrorKindFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}
