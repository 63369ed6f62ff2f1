package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/iam/internal/http/errors"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// AuthorizeController maneja GET /api/oauth2/authorize.
type AuthorizeController struct {
	service svc.AuthorizeService
	cfg     Config
}

func NewAuthorizeController(s svc.AuthorizeService, cfg Config) *AuthorizeController {
	return &AuthorizeController{service: s, cfg: cfg}
}

// Authorize crea el pedido y manda al browser a la pantalla de login. Todo
// error termina en un redirect a {app}/oauth-error: el usuario está navegando.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Authorize"))

	if !helpers.RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	req := dto.AuthorizeRequest{
		ResponseType: strings.TrimSpace(q.Get("response_type")),
		ClientID:     strings.TrimSpace(q.Get("client_id")),
		RedirectURL:  strings.TrimSpace(q.Get("redirect_url")),
		Scope:        strings.TrimSpace(q.Get("scope")),
		State:        q.Get("state"),
	}

	pid, err := c.service.Authorize(ctx, req)
	if err != nil {
		var appErr *httperrors.AppError
		if errors.Is(err, svc.ErrRedirectMismatch) {
			appErr = httperrors.ErrValidation.WithMessage(fmt.Sprintf(
				"Invalid redirect_url: %s. You can find/add callback urls under application settings.", req.RedirectURL))
		} else {
			appErr = toAppError(err, errContext{ClientID: req.ClientID}, log)
		}
		log.Debug("authorize rejected", logger.ClientID(req.ClientID), logger.String("reason", appErr.Message))
		httperrors.Redirect(w, r, c.cfg.AppURL+"/oauth-error", c.cfg.PostLoginRedirectURL, appErr)
		return
	}

	loc, err := url.Parse(c.cfg.AppURL + "/login")
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	loc.RawQuery = url.Values{"pid": {pid}}.Encode()

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, loc.String(), http.StatusTemporaryRedirect)
}
