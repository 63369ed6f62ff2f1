package session

import (
	"net/http"
	"net/url"
	"strings"

	httperrors "github.com/dropDatabas3/iam/internal/http/errors"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
	"github.com/dropDatabas3/iam/internal/session"
	"github.com/dropDatabas3/iam/internal/validation"
)

// LoginController maneja GET /api/auth/login?post_login_redirect_url=.
type LoginController struct {
	cfg Config
}

// Login guarda el state en cookie y manda al browser a /authorize con
// todos los scopes soportados.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.Login"))

	if !helpers.RequireMethod(w, r, http.MethodGet) {
		return
	}

	next := strings.TrimSpace(r.URL.Query().Get("post_login_redirect_url"))
	if next != "" && !validation.ValidAbsoluteURL(next) {
		c.fail(w, r, "Invalid post_login_redirect_url.")
		return
	}
	if next == "" {
		next = c.cfg.PostLoginRedirectURL
	}
	if next == "" {
		c.fail(w, r, "Missing post login url to redirect to following authentication.")
		return
	}

	state := tokens.NewKey()
	if err := session.Set(w, c.cfg.Cookies, session.State, session.StatePayload{ID: state, PostLoginRedirectURL: next}); err != nil {
		log.Error("set state cookie", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_url", c.cfg.CallbackURL)
	q.Set("scope", validation.AllScopes())
	q.Set("state", state)

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, c.cfg.AuthorizeURL+"?"+q.Encode(), http.StatusTemporaryRedirect)
}

func (c *LoginController) fail(w http.ResponseWriter, r *http.Request, msg string) {
	httperrors.Redirect(w, r, c.cfg.AppURL+"/oauth-error", c.cfg.PostLoginRedirectURL,
		httperrors.ErrValidation.WithMessage(msg))
}
