package errors

import (
	"encoding/json"
	"net/http"
	"net/url"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe el error como JSON {code, message, detail}.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// Redirect manda al browser a la página de error del IAM con el mensaje en
// la query. Se usa en los pasos donde el usuario está navegando (authorize,
// callback) y un JSON no le sirve a nadie.
func Redirect(w http.ResponseWriter, r *http.Request, errorPageURL, backURL string, err error) {
	appErr := FromError(err)

	u, perr := url.Parse(errorPageURL)
	if perr != nil {
		WriteError(w, appErr)
		return
	}
	q := u.Query()
	q.Set("message", appErr.Message)
	if backURL != "" {
		q.Set("redirect_url", backURL)
	}
	u.RawQuery = q.Encode()

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
}
