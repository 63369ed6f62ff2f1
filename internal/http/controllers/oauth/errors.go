package oauth

import (
	"errors"
	"fmt"
	"net/http"

	httperrors "github.com/dropDatabas3/iam/internal/http/errors"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	pwsvc "github.com/dropDatabas3/iam/internal/http/services/password"
	"go.uber.org/zap"
)

// errContext aporta los valores que algunos mensajes repiten al cliente.
type errContext struct {
	ClientID string
}

// toAppError traduce los errores de los services a la respuesta HTTP.
// Lo que no reconoce termina como 500 y se loguea.
func toAppError(err error, ec errContext, log *zap.Logger) *httperrors.AppError {
	if ve, ok := svc.IsValidation(err); ok {
		return httperrors.ErrValidation.WithMessage(ve.Message).WithDetail(ve.Field)
	}
	var pve *pwsvc.ValidationError
	if errors.As(err, &pve) {
		return httperrors.ErrValidation.WithMessage(pve.Message).WithDetail(pve.Field)
	}

	badRequest := func(msg string) *httperrors.AppError {
		return httperrors.ErrValidation.WithMessage(msg).WithCause(err)
	}
	notFound := func(msg string) *httperrors.AppError {
		return httperrors.ErrNotFound.WithMessage(msg).WithCause(err)
	}

	switch {
	// authorize
	case errors.Is(err, svc.ErrApplicationNotFound):
		return notFound(fmt.Sprintf("No application found with client_id: %s", ec.ClientID))
	case errors.Is(err, svc.ErrDuplicateState):
		return badRequest("Invalid state.")

	// login
	case errors.Is(err, svc.ErrInvalidCredentials):
		return httperrors.ErrUnauthorized.WithCause(err)
	case errors.Is(err, svc.ErrMissingAuthorizationReq):
		return badRequest("Missing authorization request.")

	// token
	case errors.Is(err, svc.ErrCodeNotFound):
		return notFound("Missing and/or expired authorization code.")
	case errors.Is(err, svc.ErrCodeExpired):
		return badRequest("Expired authorization code.")
	case errors.Is(err, svc.ErrRedirectMismatch):
		return badRequest("Invalid redirect url.")
	case errors.Is(err, svc.ErrClientMismatch):
		return badRequest(fmt.Sprintf("Invalid client id %s.", ec.ClientID))
	case errors.Is(err, svc.ErrUserNotFound):
		return notFound("Unable to locate user.")
	case errors.Is(err, svc.ErrRefreshTokenNotFound):
		return badRequest("Unable to locate refresh token")
	case errors.Is(err, svc.ErrInvalidRefreshToken):
		return badRequest("Invalid refresh token.")
	case errors.Is(err, svc.ErrInvalidSecret):
		return httperrors.ErrUnauthorized.WithMessage("Invalid secret id.").WithCause(err)
	case errors.Is(err, svc.ErrReplayDetected):
		return httperrors.ErrReplayDetected.WithCause(err)
	case errors.Is(err, svc.ErrUnsupportedGrantType):
		return badRequest("Invalid grant_type.")

	// password reset
	case errors.Is(err, pwsvc.ErrInvalidCode):
		return badRequest("Invalid and/or wrong code.")
	case errors.Is(err, pwsvc.ErrInvalidRequest), errors.Is(err, pwsvc.ErrNotVerified):
		return badRequest("Invalid and/or expired password reset request.")
	case errors.Is(err, pwsvc.ErrPasswordMismatch):
		return badRequest("Password do not match. Check and try again!")
	}

	if log != nil {
		log.Error("unexpected error", zap.Error(err))
	}
	return httperrors.ErrInternal.WithCause(err)
}

func writeErr(w http.ResponseWriter, err error, ec errContext, log *zap.Logger) {
	httperrors.WriteError(w, toAppError(err, ec, log))
}
