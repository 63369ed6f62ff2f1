package oauth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	jwtx "github.com/dropDatabas3/iam/internal/jwt"
	"github.com/dropDatabas3/iam/internal/security/password"
	"github.com/dropDatabas3/iam/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "s3cr3t-value"
	testCallback = "https://client.test/callback"
	testPassword = "correct-horse"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu      sync.Mutex
	issued  map[string]int
	replays int
	fails   map[string]int
}

func (r *recorder) TokenIssued(g string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[g]++
}

func (r *recorder) ReplayDetected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replays++
}

func (r *recorder) LoginFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails[reason]++
}

type fixture struct {
	st     *store.Store
	svc    Services
	app    *repository.Application
	userID int64
	clock  *fakeClock
	rec    *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "iam.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		st:    st,
		clock: &fakeClock{t: time.Now().UTC().Truncate(time.Second)},
		rec:   &recorder{issued: map[string]int{}, fails: map[string]int{}},
	}
	f.app = f.createApp(t, testCallback)

	hash, err := password.HashWithCost(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	f.userID, err = st.Users().Create(ctx, repository.CreateUserInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: hash,
		IsActive: true, Labels: []string{"beta"},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := st.Users().GrantPermission(ctx, f.userID, f.app.ID, "admin", "users:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	f.svc = NewServices(Deps{
		DAL:     st,
		Issuer:  &jwtx.Issuer{Now: f.clock.Now},
		Metrics: f.rec,
		Now:     f.clock.Now,
	})
	return f
}

func (f *fixture) createApp(t *testing.T, callback string) *repository.Application {
	t.Helper()
	ctx := context.Background()
	clientID := uuid.NewString()
	if _, err := f.st.Applications().Create(ctx, repository.CreateApplicationInput{
		Name: "client", Domain: "https://iam.test", ClientID: clientID, SecretID: testSecret, CallbackURL: callback,
	}); err != nil {
		t.Fatalf("create app: %v", err)
	}
	app, err := f.st.Applications().GetByClientID(ctx, clientID)
	if err != nil {
		t.Fatalf("get app: %v", err)
	}
	return app
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := f.st.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func (f *fixture) authorizeReq(state string) dto.AuthorizeRequest {
	return dto.AuthorizeRequest{
		ResponseType: "code", ClientID: f.app.ClientID, RedirectURL: testCallback,
		Scope: "openid email profile", State: state,
	}
}

// code recorre authorize + login y retorna un authorization code válido.
func (f *fixture) code(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	pid, err := f.svc.Authorize.Authorize(ctx, f.authorizeReq(uuid.NewString()))
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	res, err := f.svc.Login.Login(ctx, dto.LoginRequest{PID: pid, Email: "ada@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res.Code
}

func (f *fixture) codeGrant(code string) dto.TokenRequest {
	return dto.TokenRequest{
		GrantType: dto.GrantAuthorizationCode, ClientID: f.app.ClientID, RedirectURL: testCallback,
		ClientSecret: testSecret, Code: code,
	}
}

func (f *fixture) refreshGrant(key string) dto.TokenRequest {
	return dto.TokenRequest{
		GrantType: dto.GrantRefreshToken, ClientID: f.app.ClientID, RedirectURL: testCallback,
		ClientSecret: testSecret, RefreshToken: key,
	}
}

// ─── Authorize ───

func TestAuthorizeCreatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pid, err := f.svc.Authorize.Authorize(ctx, f.authorizeReq("state-1"))
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	req, err := f.st.AuthorizationRequests().GetByPID(ctx, pid)
	if err != nil {
		t.Fatalf("request not stored: %v", err)
	}
	if req.State != "state-1" || req.ClientID != f.app.ClientID || req.Scope != "openid email profile" {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := f.svc.Authorize.Authorize(ctx, f.authorizeReq("state-1")); !errors.Is(err, ErrDuplicateState) {
		t.Fatalf("duplicate state must fail, got %v", err)
	}
}

func TestAuthorizeRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unknown := f.authorizeReq("s-unknown")
	unknown.ClientID = uuid.NewString()
	if _, err := f.svc.Authorize.Authorize(ctx, unknown); !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("unknown client: %v", err)
	}

	for _, redirect := range []string{"https://client.test/callback/", "https://evil.test/callback", "https://client.test/callback?x=1"} {
		req := f.authorizeReq("s-" + redirect)
		req.RedirectURL = redirect
		if _, err := f.svc.Authorize.Authorize(ctx, req); !errors.Is(err, ErrRedirectMismatch) {
			t.Fatalf("redirect %q: %v", redirect, err)
		}
	}

	bad := []func(*dto.AuthorizeRequest){
		func(r *dto.AuthorizeRequest) { r.ResponseType = "token" },
		func(r *dto.AuthorizeRequest) { r.ClientID = "nope" },
		func(r *dto.AuthorizeRequest) { r.RedirectURL = "/relative" },
		func(r *dto.AuthorizeRequest) { r.Scope = "openid admin" },
		func(r *dto.AuthorizeRequest) { r.Scope = "" },
		func(r *dto.AuthorizeRequest) { r.State = "" },
	}
	for i, mutate := range bad {
		req := f.authorizeReq("s-bad")
		mutate(&req)
		if _, err := f.svc.Authorize.Authorize(ctx, req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		} else if _, ok := IsValidation(err); !ok {
			t.Fatalf("case %d: expected *ValidationError, got %v", i, err)
		}
	}

	if n := f.count(t, "authorization_requests"); n != 0 {
		t.Fatalf("rejected authorize must not persist anything, found %d rows", n)
	}
}

// ─── Login ───

func TestLoginIssuesCodeAndConsumesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pid, _ := f.svc.Authorize.Authorize(ctx, f.authorizeReq("st"))
	res, err := f.svc.Login.Login(ctx, dto.LoginRequest{PID: pid, Email: "ada@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(res.Code) != 33 || res.State != "st" || res.RedirectURL != testCallback {
		t.Fatalf("unexpected login response: %+v", res)
	}

	code, err := f.st.AuthorizationCodes().GetByCode(ctx, res.Code)
	if err != nil {
		t.Fatalf("code not stored: %v", err)
	}
	if code.UserID != f.userID || code.ExpiresAt.Sub(f.clock.Now()) != time.Minute {
		t.Fatalf("unexpected code row: %+v", code)
	}
	if _, err := f.st.AuthorizationRequests().GetByPID(ctx, pid); !repository.IsNotFound(err) {
		t.Fatalf("request must be consumed, got %v", err)
	}

	_, err = f.svc.Login.Login(ctx, dto.LoginRequest{PID: pid, Email: "ada@example.com", Password: testPassword})
	if !errors.Is(err, ErrMissingAuthorizationReq) {
		t.Fatalf("second login with the same pid: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid, _ := f.svc.Authorize.Authorize(ctx, f.authorizeReq("st"))

	cases := []dto.LoginRequest{
		{PID: pid, Email: "ada@example.com", Password: "wrong-password"},
		{PID: pid, Email: "ghost@example.com", Password: testPassword},
	}
	for _, in := range cases {
		if _, err := f.svc.Login.Login(ctx, in); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", in.Email, err)
		}
	}
	if f.rec.fails["bad_password"] != 1 || f.rec.fails["user_not_found"] != 1 {
		t.Fatalf("unexpected failure metrics: %v", f.rec.fails)
	}

	if _, err := f.svc.Login.Login(ctx, dto.LoginRequest{PID: pid, Email: "ada@example.com", Password: "12345"}); err == nil {
		t.Fatal("short password must fail validation")
	}
	if _, err := f.svc.Login.Login(ctx, dto.LoginRequest{PID: "x", Email: "ada@example.com", Password: testPassword}); err == nil {
		t.Fatal("bad pid must fail validation")
	}
	if _, err := f.svc.Login.Login(ctx, dto.LoginRequest{PID: uuid.NewString(), Email: "ada@example.com", Password: testPassword}); !errors.Is(err, ErrMissingAuthorizationReq) {
		t.Fatalf("unknown pid: %v", err)
	}

	// nada se consumió
	if _, err := f.st.AuthorizationRequests().GetByPID(ctx, pid); err != nil {
		t.Fatalf("failed logins must not consume the request: %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, _ := password.HashWithCost(testPassword, bcrypt.MinCost)
	_, _ = f.st.Users().Create(ctx, repository.CreateUserInput{
		FirstName: "Off", LastName: "Line", Email: "off@example.com", PasswordHash: hash, IsActive: false,
	})
	pid, _ := f.svc.Authorize.Authorize(ctx, f.authorizeReq("st"))
	if _, err := f.svc.Login.Login(ctx, dto.LoginRequest{PID: pid, Email: "off@example.com", Password: testPassword}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive user must not log in, got %v", err)
	}
}

// ─── Token: authorization_code ───

func TestTokenCodeGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.code(t)

	res, err := f.svc.Token.Exchange(ctx, f.codeGrant(code))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if res.IDToken == "" || res.AccessToken == "" || res.User.ID != f.userID || res.User.Email != "ada@example.com" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if _, err := uuid.Parse(res.RefreshToken); err != nil {
		t.Fatalf("refresh token must be an opaque uuid key, got %q", res.RefreshToken)
	}

	row, err := f.st.RefreshTokens().GetByKey(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh row: %v", err)
	}
	if row.DescendantKey != nil {
		t.Fatal("a code grant starts a new chain")
	}
	claims, err := f.svc.Token.(*tokenService).deps.Issuer.ParseRefresh(row.Token, testSecret)
	if err != nil {
		t.Fatalf("stored refresh jwt: %v", err)
	}
	if !row.ExpiresAt.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("row expiry %v must match jwt exp %v", row.ExpiresAt, claims.ExpiresAt.Time)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "users:read" || claims.Scope != "openid email profile" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// segundo canje del mismo code
	if _, err := f.svc.Token.Exchange(ctx, f.codeGrant(code)); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("second exchange: %v", err)
	}
	if f.rec.issued[dto.GrantAuthorizationCode] != 1 {
		t.Fatalf("issued metrics: %v", f.rec.issued)
	}
}

func TestTokenCodeExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code := f.code(t)
	f.clock.Advance(repository.AuthorizationCodeTTL) // exactamente en expiresAt
	if _, err := f.svc.Token.Exchange(ctx, f.codeGrant(code)); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("code at expiresAt must be expired, got %v", err)
	}

	code = f.code(t)
	f.clock.Advance(repository.AuthorizationCodeTTL - time.Second)
	if _, err := f.svc.Token.Exchange(ctx, f.codeGrant(code)); err != nil {
		t.Fatalf("code one second before expiry must work: %v", err)
	}
}

func TestTokenCodeMismatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.codeGrant(f.code(t))
	req.RedirectURL = "https://client.test/other"
	if _, err := f.svc.Token.Exchange(ctx, req); !errors.Is(err, ErrRedirectMismatch) {
		t.Fatalf("redirect mismatch: %v", err)
	}

	other := f.createApp(t, testCallback)
	req = f.codeGrant(f.code(t))
	req.ClientID = other.ClientID
	if _, err := f.svc.Token.Exchange(ctx, req); !errors.Is(err, ErrClientMismatch) {
		t.Fatalf("client mismatch: %v", err)
	}

	code := f.code(t)
	req = f.codeGrant(code)
	req.ClientSecret = "wrong"
	if _, err := f.svc.Token.Exchange(ctx, req); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("wrong secret: %v", err)
	}
	if _, err := f.st.AuthorizationCodes().GetByCode(ctx, code); !repository.IsNotFound(err) {
		t.Fatalf("code is consumed before the secret check, got %v", err)
	}
	if n := f.count(t, "refresh_tokens"); n != 0 {
		t.Fatalf("no refresh rows on failures, got %d", n)
	}
}

func TestTokenValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []dto.TokenRequest{
		{GrantType: "password", ClientID: f.app.ClientID, RedirectURL: testCallback, ClientSecret: testSecret, Code: "x"},
		{GrantType: dto.GrantAuthorizationCode, ClientID: "x", RedirectURL: testCallback, ClientSecret: testSecret, Code: "x"},
		{GrantType: dto.GrantAuthorizationCode, ClientID: f.app.ClientID, RedirectURL: "nope", ClientSecret: testSecret, Code: "x"},
		{GrantType: dto.GrantAuthorizationCode, ClientID: f.app.ClientID, RedirectURL: testCallback, Code: "x"},
		{GrantType: dto.GrantAuthorizationCode, ClientID: f.app.ClientID, RedirectURL: testCallback, ClientSecret: testSecret, RefreshToken: "k"},
		{GrantType: dto.GrantRefreshToken, ClientID: f.app.ClientID, RedirectURL: testCallback, ClientSecret: testSecret, Code: "x"},
	}
	for i, in := range cases {
		if _, err := f.svc.Token.Exchange(ctx, in); err == nil {
			t.Fatalf("case %d: expected error", i)
		} else if _, ok := IsValidation(err); !ok {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

// ─── Token: refresh_token ───

func TestRefreshRotationAndReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))
	if err != nil {
		t.Fatalf("code exchange: %v", err)
	}

	second, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken))
	if err != nil {
		t.Fatalf("rotation: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation must mint a new key")
	}
	row, _ := f.st.RefreshTokens().GetByKey(ctx, second.RefreshToken)
	if row == nil || row.DescendantKey == nil || *row.DescendantKey != first.RefreshToken {
		t.Fatalf("rotated row must point at its parent: %+v", row)
	}
	parent, _ := f.st.RefreshTokens().GetByKey(ctx, first.RefreshToken)
	if parent == nil || parent.RotatedAt == nil {
		t.Fatalf("parent row must be marked rotated: %+v", parent)
	}

	// reuso del ancestro: replay, se purga toda la cadena
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("replay: %v", err)
	}
	if n := f.count(t, "refresh_tokens"); n != 0 {
		t.Fatalf("chain must be purged, %d rows left", n)
	}
	if f.rec.replays != 1 {
		t.Fatalf("replay metric = %d", f.rec.replays)
	}

	// el descendiente legítimo también quedó revocado
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(second.RefreshToken)); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("purged descendant: %v", err)
	}
}

func TestRotatedKeyStaysSpentAfterChildLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))
	if err != nil {
		t.Fatalf("code exchange: %v", err)
	}
	second, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken))
	if err != nil {
		t.Fatalf("rotation: %v", err)
	}

	// el hijo desaparece (logout); el padre sigue gastado
	if err := f.svc.Logout.Logout(ctx, second.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("rotated key presented after child logout: %v", err)
	}
	if n := f.count(t, "refresh_tokens"); n != 0 {
		t.Fatalf("replay must purge the remaining lineage, %d rows left", n)
	}
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken)); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("purged key: %v", err)
	}
	if f.rec.issued[dto.GrantRefreshToken] != 1 {
		t.Fatalf("a key rotates exactly once, refresh grants issued = %d", f.rec.issued[dto.GrantRefreshToken])
	}
}

func TestRotatedKeyStaysSpentAfterChildReaped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))
	second, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken))
	if err != nil {
		t.Fatalf("rotation: %v", err)
	}
	if n, err := f.st.RefreshTokens().DeleteByKey(ctx, second.RefreshToken); err != nil || n != 1 {
		t.Fatalf("delete child = %d, %v", n, err)
	}
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("rotated key with its child gone: %v", err)
	}
}

func TestRefreshPurgeLeavesOtherChains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))
	b, _ := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))
	a2, _ := f.svc.Token.Exchange(ctx, f.refreshGrant(a.RefreshToken))
	_, _ = f.svc.Token.Exchange(ctx, f.refreshGrant(a2.RefreshToken))

	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(a.RefreshToken)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("replay: %v", err)
	}
	if n := f.count(t, "refresh_tokens"); n != 1 {
		t.Fatalf("only the untouched chain must survive, got %d rows", n)
	}
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(b.RefreshToken)); err != nil {
		t.Fatalf("independent chain must keep working: %v", err)
	}
}

func TestRefreshRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, _ := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))

	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(uuid.NewString())); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("unknown key: %v", err)
	}

	req := f.refreshGrant(first.RefreshToken)
	req.ClientSecret = "wrong"
	if _, err := f.svc.Token.Exchange(ctx, req); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("wrong secret: %v", err)
	}

	other := f.createApp(t, testCallback)
	req = f.refreshGrant(first.RefreshToken)
	req.ClientID = other.ClientID
	if _, err := f.svc.Token.Exchange(ctx, req); !errors.Is(err, ErrClientMismatch) {
		t.Fatalf("azp mismatch: %v", err)
	}

	f.clock.Advance(time.Duration(f.app.RefreshTokenExp+1) * time.Second)
	if _, err := f.svc.Token.Exchange(ctx, f.refreshGrant(first.RefreshToken)); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expired refresh jwt: %v", err)
	}

	// ninguna de las fallas rotó la key
	if n := f.count(t, "refresh_tokens"); n != 1 {
		t.Fatalf("failed refreshes must not add rows, got %d", n)
	}
}

// ─── Logout ───

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, _ := f.svc.Token.Exchange(ctx, f.codeGrant(f.code(t)))

	if err := f.svc.Logout.Logout(ctx, res.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.st.RefreshTokens().GetByKey(ctx, res.RefreshToken); !repository.IsNotFound(err) {
		t.Fatalf("row must be gone, got %v", err)
	}
	if err := f.svc.Logout.Logout(ctx, res.RefreshToken); err != nil {
		t.Fatalf("logout must be idempotent: %v", err)
	}
	if err := f.svc.Logout.Logout(ctx, ""); err == nil {
		t.Fatal("missing key must fail")
	}
}
