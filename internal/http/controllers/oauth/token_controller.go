package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/iam/internal/http/errors"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// TokenController maneja POST /api/oauth2/token.
type TokenController struct {
	service svc.TokenService
}

func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// Token acepta los parámetros en la query (como los manda el cliente) o en un
// body application/x-www-form-urlencoded. Si vienen en ambos gana el body.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Token"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithCause(err))
		return
	}
	req := dto.TokenRequest{
		GrantType:    strings.TrimSpace(r.FormValue("grant_type")),
		ClientID:     strings.TrimSpace(r.FormValue("client_id")),
		RedirectURL:  strings.TrimSpace(r.FormValue("redirect_url")),
		ClientSecret: r.FormValue("client_secret"),
		Code:         strings.TrimSpace(r.FormValue("code")),
		RefreshToken: strings.TrimSpace(r.FormValue("refresh_token")),
	}

	res, err := c.service.Exchange(ctx, req)
	if err != nil {
		writeErr(w, err, errContext{ClientID: req.ClientID}, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}
