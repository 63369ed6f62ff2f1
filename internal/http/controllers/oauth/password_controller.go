package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	pwdto "github.com/dropDatabas3/iam/internal/http/dto/password"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	pwsvc "github.com/dropDatabas3/iam/internal/http/services/password"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// PasswordController maneja las tres etapas del reset de password.
type PasswordController struct {
	service pwsvc.ResetService
}

func NewPasswordController(s pwsvc.ResetService) *PasswordController {
	return &PasswordController{service: s}
}

// Request maneja POST /api/oauth2/password-reset[?pid=].
func (c *PasswordController) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasswordController.Request"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req pwdto.ResetRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.AuthReqPID = strings.TrimSpace(r.URL.Query().Get("pid"))

	res, err := c.service.Request(ctx, req)
	if err != nil {
		writeErr(w, err, errContext{}, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Code maneja POST /api/oauth2/password-reset-code?pass_reset_pid=.
func (c *PasswordController) Code(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasswordController.Code"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req pwdto.CodeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.PassResetPID = strings.TrimSpace(r.URL.Query().Get("pass_reset_pid"))
	req.Code = strings.TrimSpace(req.Code)

	if err := c.service.VerifyCode(ctx, req); err != nil {
		writeErr(w, err, errContext{}, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Confirm maneja POST /api/oauth2/password-reset-confirm?pass_reset_pid=.
func (c *PasswordController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasswordController.Confirm"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req pwdto.ConfirmRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.PassResetPID = strings.TrimSpace(r.URL.Query().Get("pass_reset_pid"))

	res, err := c.service.Confirm(ctx, req)
	if err != nil {
		writeErr(w, err, errContext{}, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}
