package session

import (
	"net/http"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/iam/internal/http/errors"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	"github.com/dropDatabas3/iam/internal/session"
)

// LogoutController maneja POST /api/auth/logout.
type LogoutController struct {
	logout svc.LogoutService
	cfg    Config
}

// Logout borra el refresh token del servidor y limpia las cookies.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.Logout"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}

	key, err := session.Get(r, session.RefreshToken)
	if err != nil || key == "" {
		httperrors.WriteError(w, httperrors.ErrValidation.WithMessage("Invalid or missing refresh token."))
		return
	}
	if err := c.logout.Logout(ctx, key); err != nil {
		if _, ok := svc.IsValidation(err); ok {
			// cookie adulterada: igual se limpia
			session.Clear(w, c.cfg.Cookies)
			httperrors.WriteError(w, httperrors.ErrValidation.WithMessage("Invalid or missing refresh token."))
			return
		}
		log.Error("logout failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}

	session.Clear(w, c.cfg.Cookies)
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
