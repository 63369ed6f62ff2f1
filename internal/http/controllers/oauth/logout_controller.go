package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	"github.com/dropDatabas3/iam/internal/http/helpers"
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// LogoutController maneja POST /api/oauth2/logout.
type LogoutController struct {
	service svc.LogoutService
}

func NewLogoutController(s svc.LogoutService) *LogoutController {
	return &LogoutController{service: s}
}

func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LogoutController.Logout"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.LogoutRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.service.Logout(ctx, req.RefreshToken); err != nil {
		writeErr(w, err, errContext{}, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
