// Package errors define el error tipado que cruza la frontera HTTP.
//
// Los services devuelven errores sentinela; los controllers los traducen a un
// *AppError y lo escriben con WriteError (JSON) o Redirect (flujos de browser).
package errors

import (
	"fmt"
	"net/http"
)

// Kind agrupa los errores según la taxonomía del motor OAuth2.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindUnauthorized   Kind = "unauthorized"
	KindReplayDetected Kind = "replay_detected"
	KindRateLimited    Kind = "rate_limited"
	KindInternal       Kind = "internal"
)

// AppError es el error estándar que ve el cliente.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa original, solo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError suelto.
func New(kind Kind, status int, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: status}
}

// FromError convierte cualquier error en *AppError. Lo que no sea un AppError
// termina como ErrInternal con la causa conservada.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithMessage devuelve una COPIA con otro mensaje (los predefinidos no se mutan).
func (e *AppError) WithMessage(msg string) *AppError {
	c := *e
	c.Message = msg
	return &c
}

// WithDetail devuelve una COPIA con detalle adicional.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

var (
	// ErrValidation: parámetros faltantes o mal formados.
	ErrValidation = &AppError{
		Kind:       KindValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "Something went wrong parsing the request.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Kind:       KindValidation,
		Code:       "INVALID_JSON",
		Message:    "Something went wrong parsing body payload.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMethodNotAllowed = &AppError{
		Kind:       KindValidation,
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

var (
	// ErrNotFound: code, aplicación o usuario inexistente.
	ErrNotFound = &AppError{
		Kind:       KindNotFound,
		Code:       "NOT_FOUND",
		Message:    "Resource not found.",
		HTTPStatus: http.StatusNotFound,
	}
)

var (
	// ErrUnauthorized: credenciales o secret inválidos. Es 400 a propósito,
	// así el cliente no puede distinguir cuál de los chequeos falló.
	ErrUnauthorized = &AppError{
		Kind:       KindUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    "Unable to verify credentials.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrReplayDetected: se presentó un refresh token ya rotado.
	ErrReplayDetected = &AppError{
		Kind:       KindReplayDetected,
		Code:       "REPLAY_DETECTED",
		Message:    "Replay attack detected.",
		HTTPStatus: http.StatusBadRequest,
	}
)

var (
	ErrRateLimited = &AppError{
		Kind:       KindRateLimited,
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, try again later.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternal = &AppError{
		Kind:       KindInternal,
		Code:       "INTERNAL_ERROR",
		Message:    "Something went wrong.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
