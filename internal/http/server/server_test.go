package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/iam/internal/config"
	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/dropDatabas3/iam/internal/email"
	"github.com/dropDatabas3/iam/internal/metrics"
	pw "github.com/dropDatabas3/iam/internal/security/password"
	"github.com/dropDatabas3/iam/internal/store"
)

const (
	appURL       = "https://iam.test"
	clientCB     = "https://client.test/callback"
	clientSecret = "client-secret"
	selfCB       = "https://iam.test/api/auth/callback"
	selfSecret   = "self-secret"

	selfIDExp      = 600
	selfAccessExp  = 1200
	selfRefreshExp = 7200
)

type harness struct {
	t        *testing.T
	app      *App
	st       *store.Store
	sender   *email.LogSender
	clientID string
	selfID   string
}

// newHarness acepta pares KEY, VALUE de env que pisan los defaults.
func newHarness(t *testing.T, env ...string) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "iam.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.Migrate(ctx)
	require.NoError(t, err)

	h := &harness{t: t, st: st, sender: &email.LogSender{}, clientID: uuid.NewString(), selfID: uuid.NewString()}

	// la app propia usa vidas no default para que las cookies las reflejen
	for _, a := range []struct {
		id, secret, cb  string
		idExp, acc, ref int64
	}{
		{h.clientID, clientSecret, clientCB, 0, 0, 0},
		{h.selfID, selfSecret, selfCB, selfIDExp, selfAccessExp, selfRefreshExp},
	} {
		_, err := st.Applications().Create(ctx, repository.CreateApplicationInput{
			Name: "app", Domain: appURL, ClientID: a.id, SecretID: a.secret, CallbackURL: a.cb,
			IDTokenExp: a.idExp, AccessTokenExp: a.acc, RefreshTokenExp: a.ref,
		})
		require.NoError(t, err)
	}

	hash, err := pw.HashWithCost("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.Users().Create(ctx, repository.CreateUserInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: hash, IsActive: true,
	})
	require.NoError(t, err)

	t.Setenv("APP_URL", appURL)
	t.Setenv("SELF_CLIENT_ID", h.selfID)
	t.Setenv("SELF_CLIENT_SECRET", selfSecret)
	t.Setenv("SELF_CALLBACK_URL", selfCB)
	t.Setenv("POST_LOGIN_REDIRECT_URL", appURL+"/dashboard")
	t.Setenv("AUTH_APPLICATION_CACHE_TTL", "1m")
	t.Setenv("RATE_ENABLED", "false")
	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}
	cfg, err := config.Load("")
	require.NoError(t, err)

	h.app, err = Build(cfg, Infra{Store: st, Sender: h.sender, Metrics: metrics.New(), Version: "test"})
	require.NoError(t, err)
	return h
}

func (h *harness) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = httptest.NewRequest(method, target, strings.NewReader(string(b)))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.app.Handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type tokenResp struct {
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errResp struct {
	Message string `json:"message"`
}

// authorizeAndLogin recorre authorize + login y devuelve el code.
func (h *harness) authorizeAndLogin(clientID, cb, state string) string {
	t := h.t
	q := url.Values{
		"response_type": {"code"}, "client_id": {clientID}, "redirect_url": {cb},
		"scope": {"openid email profile"}, "state": {state},
	}
	rec := h.do(http.MethodGet, "/api/oauth2/authorize?"+q.Encode(), nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/login", loc.Path)
	pid := loc.Query().Get("pid")
	require.NotEmpty(t, pid)

	rec = h.do(http.MethodPost, "/api/oauth2/login?pid="+pid, map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[struct {
		Code        string `json:"code"`
		State       string `json:"state"`
		RedirectURL string `json:"redirectUrl"`
	}](t, rec)
	require.Equal(t, state, login.State)
	require.Equal(t, cb, login.RedirectURL)
	require.Len(t, login.Code, 33)
	return login.Code
}

func (h *harness) token(params url.Values) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/api/oauth2/token?"+params.Encode(), nil)
}

func (h *harness) grant(kind, value string) url.Values {
	v := url.Values{
		"grant_type": {kind}, "client_id": {h.clientID}, "redirect_url": {clientCB}, "client_secret": {clientSecret},
	}
	if kind == "authorization_code" {
		v.Set("code", value)
	} else {
		v.Set("refresh_token", value)
	}
	return v
}

func TestOAuthFlowEndToEnd(t *testing.T) {
	h := newHarness(t)

	code := h.authorizeAndLogin(h.clientID, clientCB, "state-e2e")

	rec := h.token(h.grant("authorization_code", code))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	first := decode[tokenResp](t, rec)
	require.NotEmpty(t, first.IDToken)
	require.NotEmpty(t, first.AccessToken)
	require.Equal(t, "ada@example.com", first.User.Email)
	_, err := uuid.Parse(first.RefreshToken)
	require.NoError(t, err, "refreshToken is the opaque row key")

	// el code es de un solo uso
	rec = h.token(h.grant("authorization_code", code))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Missing and/or expired authorization code.", decode[errResp](t, rec).Message)

	// rotación
	rec = h.token(h.grant("refresh_token", first.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[tokenResp](t, rec)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// replay del token ya rotado: 400 y se purga toda la cadena
	rec = h.token(h.grant("refresh_token", first.RefreshToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Replay attack detected.", decode[errResp](t, rec).Message)

	rec = h.token(h.grant("refresh_token", second.RefreshToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unable to locate refresh token", decode[errResp](t, rec).Message)

	// logout idempotente
	for i := 0; i < 2; i++ {
		rec = h.do(http.MethodPost, "/api/oauth2/logout", map[string]string{"refreshToken": second.RefreshToken})
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"success":true}`, rec.Body.String())
	}
	rec = h.do(http.MethodPost, "/api/oauth2/logout", map[string]string{"refreshToken": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenErrors(t *testing.T) {
	h := newHarness(t)
	code := h.authorizeAndLogin(h.clientID, clientCB, "state-errors")

	bad := h.grant("authorization_code", code)
	bad.Set("client_secret", "wrong")
	rec := h.token(bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid secret id.", decode[errResp](t, rec).Message)

	rec = h.token(url.Values{"grant_type": {"authorization_code"}, "client_id": {h.clientID}, "redirect_url": {clientCB}, "client_secret": {clientSecret}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "`code` and/or `refresh_token` is required given the grant_type", decode[errResp](t, rec).Message)

	rec = h.do(http.MethodGet, "/api/oauth2/token", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuthorizeErrorsRedirect(t *testing.T) {
	h := newHarness(t)
	unknown := uuid.NewString()
	q := url.Values{
		"response_type": {"code"}, "client_id": {unknown}, "redirect_url": {clientCB},
		"scope": {"openid"}, "state": {"s"},
	}
	rec := h.do(http.MethodGet, "/api/oauth2/authorize?"+q.Encode(), nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/oauth-error", loc.Path)
	require.Equal(t, "No application found with client_id: "+unknown, loc.Query().Get("message"))
	require.Equal(t, appURL+"/dashboard", loc.Query().Get("redirect_url"))

	q.Set("client_id", h.clientID)
	q.Set("redirect_url", "https://evil.test/cb")
	rec = h.do(http.MethodGet, "/api/oauth2/authorize?"+q.Encode(), nil)
	loc, _ = url.Parse(rec.Header().Get("Location"))
	require.True(t, strings.HasPrefix(loc.Query().Get("message"), "Invalid redirect_url: https://evil.test/cb."))
}

var resetCodeRE = regexp.MustCompile(`code is (\d{6})`)

func TestPasswordResetEndToEnd(t *testing.T) {
	h := newHarness(t)
	authPID := uuid.NewString()

	rec := h.do(http.MethodPost, "/api/oauth2/password-reset?pid="+authPID, map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pid := decode[struct {
		PassResetPID string `json:"passResetPid"`
	}](t, rec).PassResetPID

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	m := resetCodeRE.FindStringSubmatch(sent[0].Text)
	require.Len(t, m, 2)

	rec = h.do(http.MethodPost, "/api/oauth2/password-reset-confirm?pass_reset_pid="+pid,
		map[string]string{"password": "brand-new-pw", "passwordConfirmation": "brand-new-pw"})
	require.Equal(t, http.StatusBadRequest, rec.Code, "confirm requires a verified code")

	rec = h.do(http.MethodPost, "/api/oauth2/password-reset-code?pass_reset_pid="+pid, map[string]string{"code": "000000x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid and/or wrong code.", decode[errResp](t, rec).Message)

	rec = h.do(http.MethodPost, "/api/oauth2/password-reset-code?pass_reset_pid="+pid, map[string]string{"code": m[1]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/oauth2/password-reset-confirm?pass_reset_pid="+pid,
		map[string]string{"password": "brand-new-pw", "passwordConfirmation": "other-pw"})
	require.Equal(t, "Password do not match. Check and try again!", decode[errResp](t, rec).Message)

	rec = h.do(http.MethodPost, "/api/oauth2/password-reset-confirm?pass_reset_pid="+pid,
		map[string]string{"password": "brand-new-pw", "passwordConfirmation": "brand-new-pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"authReqPid":"`+authPID+`"}`, rec.Body.String())

	u, err := h.st.Users().GetActiveByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, pw.Verify(u.PasswordHash, "brand-new-pw"))
}

func TestRelyingSessionFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/auth/login", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/api/oauth2/authorize", loc.Path)
	require.Equal(t, h.selfID, loc.Query().Get("client_id"))
	require.Equal(t, "email profile openid", loc.Query().Get("scope"))
	state := loc.Query().Get("state")
	stateCookies := rec.Result().Cookies()
	require.Len(t, stateCookies, 1)
	require.Equal(t, "fcf_iam_state", stateCookies[0].Name)

	code := h.authorizeAndLogin(h.selfID, selfCB, state)

	// state distinto: falla cerrado y no canjea el code
	rec = h.do(http.MethodGet, "/api/auth/callback?code="+code+"&state=forged", nil, stateCookies...)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/oauth-error")

	rec = h.do(http.MethodGet, "/api/auth/callback?code="+code+"&state="+url.QueryEscape(state), nil, stateCookies...)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, appURL+"/dashboard", rec.Header().Get("Location"))

	jar := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		jar[c.Name] = c
	}
	for _, name := range []string{"fcf_iam_id_token", "fcf_iam_access_token", "fcf_iam_refresh_token", "fcf_iam_user"} {
		require.Contains(t, jar, name)
		require.True(t, jar[name].HttpOnly)
	}
	require.Less(t, jar["fcf_iam_state"].MaxAge, 0, "state cookie is deleted")

	// MaxAge sale del exp - iat de cada token, no de un valor fijo
	require.Equal(t, selfIDExp, jar["fcf_iam_id_token"].MaxAge)
	require.Equal(t, selfAccessExp, jar["fcf_iam_access_token"].MaxAge)
	require.InDelta(t, selfRefreshExp, jar["fcf_iam_refresh_token"].MaxAge, 1)
	require.Equal(t, jar["fcf_iam_refresh_token"].MaxAge, jar["fcf_iam_user"].MaxAge)

	rec = h.do(http.MethodPost, "/api/auth/logout", nil, jar["fcf_iam_refresh_token"])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, rec.Result().Cookies(), 5)

	rec = h.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", nil).Code)

	h.authorizeAndLogin(h.clientID, clientCB, "state-metrics")
	rec := h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Body.String(), `http_requests_total{method="POST",path="/api/oauth2/login",status="200"}`)
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, "RATE_ENABLED", "true")

	body := map[string]string{"email": "ada@example.com", "password": "wrong-password"}
	pid := uuid.NewString()
	for i := 0; i < 10; i++ {
		rec := h.do(http.MethodPost, "/api/oauth2/login?pid="+pid, body)
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code, "request %d", i+1)
	}
	rec := h.do(http.MethodPost, "/api/oauth2/login?pid="+pid, body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

// loginFrom hace un login fallido desde remote con un X-Forwarded-For propio.
func (h *harness) loginFrom(pid, remote, forwarded string) int {
	b, err := json.Marshal(map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	require.NoError(h.t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/oauth2/login?pid="+pid, strings.NewReader(string(b)))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Forwarded-For", forwarded)
	r.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.app.Handler.ServeHTTP(rec, r)
	return rec.Code
}

func TestSpoofedForwardedForDoesNotEvadeRateLimit(t *testing.T) {
	h := newHarness(t, "RATE_ENABLED", "true")

	pid := uuid.NewString()
	for i := 0; i < 10; i++ {
		code := h.loginFrom(pid, "198.51.100.4:4000", fmt.Sprintf("203.0.113.%d", i))
		require.NotEqual(t, http.StatusTooManyRequests, code, "request %d", i+1)
	}
	require.Equal(t, http.StatusTooManyRequests, h.loginFrom(pid, "198.51.100.4:4000", "203.0.113.250"))
}

func TestTrustedProxyForwardsClientIP(t *testing.T) {
	h := newHarness(t, "RATE_ENABLED", "true", "SERVER_TRUSTED_PROXIES", "10.0.0.0/8")

	// detrás del proxy cada cliente tiene su propio bucket
	pid := uuid.NewString()
	for i := 0; i < 12; i++ {
		code := h.loginFrom(pid, "10.0.0.2:4000", fmt.Sprintf("203.0.113.%d", i))
		require.NotEqual(t, http.StatusTooManyRequests, code, "request %d", i+1)
	}
}

func TestTokenCORSPreflight(t *testing.T) {
	h := newHarness(t, "SERVER_CORS_ALLOWED_ORIGINS", "https://client.test")

	r := httptest.NewRequest(http.MethodOptions, "/api/oauth2/token", nil)
	r.Header.Set("Origin", "https://client.test")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.app.Handler.ServeHTTP(rec, r)

	require.Less(t, rec.Code, 300)
	require.Equal(t, "https://client.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRotatedKeyRejectedAfterChildLogout(t *testing.T) {
	h := newHarness(t)
	code := h.authorizeAndLogin(h.clientID, clientCB, "state-spent")

	first := decode[tokenResp](t, h.token(h.grant("authorization_code", code)))
	rec := h.token(h.grant("refresh_token", first.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[tokenResp](t, rec)

	rec = h.do(http.MethodPost, "/api/oauth2/logout", map[string]string{"refreshToken": second.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.token(h.grant("refresh_token", first.RefreshToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Replay attack detected.", decode[errResp](t, rec).Message)
}
