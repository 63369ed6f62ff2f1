package session

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/iam/internal/http/errors"
	jwtx "github.com/dropDatabas3/iam/internal/jwt"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
	"github.com/dropDatabas3/iam/internal/session"
)

// CallbackController maneja GET /api/auth/callback?code=&state=.
type CallbackController struct {
	tokens svc.TokenService
	issuer *jwtx.Issuer
	cfg    Config
}

// Callback valida el state contra la cookie, canjea el code con las
// credenciales de la app propia y deja la sesión en cookies.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.Callback"))

	if !helpers.RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		c.fail(w, r, httperrors.ErrValidation.WithMessage("Missing code."))
		return
	}

	// sin cookie o con state distinto no se canjea nada
	st, err := session.Get(r, session.State)
	if err != nil || st.ID == "" || !tokens.Equal(st.ID, q.Get("state")) {
		log.Warn("callback state mismatch")
		c.fail(w, r, httperrors.ErrValidation.WithMessage("Unable to process request"))
		return
	}
	if st.PostLoginRedirectURL == "" {
		c.fail(w, r, httperrors.ErrValidation.WithMessage("Missing post redirect url"))
		return
	}

	res, err := c.tokens.Exchange(ctx, dto.TokenRequest{
		GrantType:    dto.GrantAuthorizationCode,
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.CallbackURL,
		Code:         code,
	})
	if err != nil {
		log.Info("callback exchange failed", logger.Err(err))
		c.fail(w, r, httperrors.ErrValidation.WithMessage("Unable to complete sign in.").WithCause(err))
		return
	}

	// el user de la cookie sale de un id token verificado, no del JSON suelto
	idc, err := c.issuer.ParseIDToken(res.IDToken, c.cfg.ClientSecret, c.cfg.ClientID)
	if err == nil && idc.Subject != strconv.FormatInt(res.User.ID, 10) {
		err = jwtx.ErrInvalidToken
	}
	var ac *jwtx.AccessTokenClaims
	if err == nil {
		ac, err = c.issuer.ParseAccess(res.AccessToken, c.cfg.ClientSecret)
	}
	if err == nil && ac.AuthorizedParty != c.cfg.ClientID {
		err = jwtx.ErrInvalidToken
	}
	if err != nil {
		log.Error("callback token verification failed", logger.Err(err))
		c.fail(w, r, httperrors.ErrValidation.WithMessage("Unable to complete sign in.").WithCause(err))
		return
	}

	// cada cookie vive lo mismo que el token que guarda
	iat := time.Now()
	if idc.IssuedAt != nil {
		iat = idc.IssuedAt.Time
	}
	refreshTTL := res.RefreshExpiresAt.Sub(iat)
	opts := c.cfg.Cookies
	session.Delete(w, opts, session.State)
	for _, err := range []error{
		session.Set(w, opts, session.IDToken.For(lifetime(&idc.RegisteredClaims)), res.IDToken),
		session.Set(w, opts, session.AccessToken.For(lifetime(&ac.RegisteredClaims)), res.AccessToken),
		session.Set(w, opts, session.RefreshToken.For(refreshTTL), res.RefreshToken),
		session.Set(w, opts, session.User.For(refreshTTL), res.User),
	} {
		if err != nil {
			log.Error("set session cookie", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
			return
		}
	}

	log.Info("session started", logger.UserID(res.User.ID))
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, st.PostLoginRedirectURL, http.StatusTemporaryRedirect)
}

func lifetime(rc *jwtv5.RegisteredClaims) time.Duration {
	if rc.ExpiresAt == nil || rc.IssuedAt == nil {
		return 0
	}
	return rc.ExpiresAt.Sub(rc.IssuedAt.Time)
}

func (c *CallbackController) fail(w http.ResponseWriter, r *http.Request, appErr *httperrors.AppError) {
	httperrors.Redirect(w, r, c.cfg.AppURL+"/oauth-error", c.cfg.PostLoginRedirectURL, appErr)
}
