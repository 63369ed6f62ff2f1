// Package session guarda el estado del lado relying (el dashboard del IAM)
// en cookies tipadas.
//
// Cada Key[T] liga un nombre de cookie con el tipo de su payload, así
// Set/Get/Delete quedan chequeados en compilación:
//
//	_ = session.Set(w, opts, session.State, session.StatePayload{ID: id})
//	st, err := session.Get(r, session.State)
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtx "github.com/dropDatabas3/iam/internal/jwt"
)

var (
	ErrNoSession = errors.New("session: cookie not present")
	ErrMalformed = errors.New("session: malformed cookie")
)

// Key identifica una cookie y el tipo que transporta.
type Key[T any] struct {
	Name   string
	MaxAge time.Duration
}

// StatePayload viaja entre /api/auth/login y /api/auth/callback.
type StatePayload struct {
	ID                   string `json:"id"`
	PostLoginRedirectURL string `json:"postLoginRedirectUrl"`
}

// Los MaxAge son defaults; el callback los pisa con la vida real de cada token.
var (
	State        = Key[StatePayload]{Name: "fcf_iam_state", MaxAge: 10 * time.Minute}
	IDToken      = Key[string]{Name: "fcf_iam_id_token", MaxAge: time.Hour}
	AccessToken  = Key[string]{Name: "fcf_iam_access_token", MaxAge: 24 * time.Hour}
	RefreshToken = Key[string]{Name: "fcf_iam_refresh_token", MaxAge: 15 * 24 * time.Hour}
	User         = Key[jwtx.UserProfile]{Name: "fcf_iam_user", MaxAge: 15 * 24 * time.Hour}
)

// For devuelve k con MaxAge = lifetime, así la cookie vence junto con el
// token que guarda. Con lifetime <= 0 se queda con el default de k.
func (k Key[T]) For(lifetime time.Duration) Key[T] {
	if lifetime > 0 {
		k.MaxAge = lifetime.Truncate(time.Second)
		if k.MaxAge < time.Second {
			k.MaxAge = time.Second
		}
	}
	return k
}

// Options son los atributos comunes a todas las cookies.
type Options struct {
	Secure   bool
	Domain   string
	SameSite string // lax (default) | strict | none
}

// Set serializa v (JSON + base64url) en la cookie de k.
func Set[T any](w http.ResponseWriter, opts Options, k Key[T], v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", k.Name, err)
	}
	ck := opts.cookie(k.Name, base64.RawURLEncoding.EncodeToString(raw))
	if k.MaxAge > 0 {
		ck.Expires = time.Now().Add(k.MaxAge).UTC()
		ck.MaxAge = int(k.MaxAge.Seconds())
	}
	http.SetCookie(w, ck)
	return nil
}

// Get lee la cookie de k. ErrNoSession si no vino, ErrMalformed si no decodifica.
func Get[T any](r *http.Request, k Key[T]) (T, error) {
	var zero T
	ck, err := r.Cookie(k.Name)
	if err != nil || ck.Value == "" {
		return zero, ErrNoSession
	}
	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return zero, fmt.Errorf("%w: %s", ErrMalformed, k.Name)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("%w: %s", ErrMalformed, k.Name)
	}
	return v, nil
}

// Delete expira la cookie de k.
func Delete[T any](w http.ResponseWriter, opts Options, k Key[T]) {
	ck := opts.cookie(k.Name, "")
	ck.Expires = time.Unix(0, 0).UTC()
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}

// Clear borra todas las cookies de sesión (logout).
func Clear(w http.ResponseWriter, opts Options) {
	Delete(w, opts, State)
	Delete(w, opts, IDToken)
	Delete(w, opts, AccessToken)
	Delete(w, opts, RefreshToken)
	Delete(w, opts, User)
}

func (o Options) cookie(name, value string) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: parseSameSite(o.SameSite),
	}
	if d := strings.TrimSpace(o.Domain); d != "" {
		ck.Domain = d
	}
	return ck
}

func parseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
