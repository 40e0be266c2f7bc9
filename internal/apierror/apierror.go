// Package apierror provides the error envelope returned to API clients.
// Internal causes (SQL, redis, stack traces) never reach the body: callers
// log them and respond through Status.
package apierror

import (
	"errors"
	"net/http"
	"strings"

	"caixapdv/internal/apperrors"
)

// APIError is the envelope for every 4xx/5xx response.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError carries per-field validator tags.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Erro de validação", Fields: fields}
}

// Status maps a service error onto an HTTP status and a safe envelope.
// Known sentinel errors keep their message; anything else is reported as
// an internal error.
func Status(err error) (int, *APIError) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusUnprocessableEntity, New(detail(err, apperrors.ErrValidation, "Dados inválidos"))
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, New("Já existe um caixa aberto nesta loja")
	case errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusConflict, New(detail(err, apperrors.ErrInvalidState, "Operação inválida para o estado do caixa"))
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, New(detail(err, apperrors.ErrNotFound, "Não encontrado"))
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, New(detail(err, apperrors.ErrUnauthorized, "Não autorizado"))
	default:
		return http.StatusInternalServerError, New("Erro interno do servidor")
	}
}

// detail strips the wrapped sentinel from the message ("caixa x está
// fechado: invalid register state" becomes "caixa x está fechado"). A bare
// sentinel yields fallback.
func detail(err, sentinel error, fallback string) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" || msg == sentinel.Error() {
		return fallback
	}
	return msg
}

// IsInternal reports whether Status would hide err behind a 500.
func IsInternal(err error) bool {
	code, _ := Status(err)
	return code == http.StatusInternalServerError
}
