package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// LoginController maneja POST /api/oauth2/login?pid=.
type LoginController struct {
	service svc.LoginService
}

func NewLoginController(s svc.LoginService) *LoginController {
	return &LoginController{service: s}
}

func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.PID = strings.TrimSpace(r.URL.Query().Get("pid"))

	res, err := c.service.Login(ctx, req)
	if err != nil {
		writeErr(w, err, errContext{}, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}
