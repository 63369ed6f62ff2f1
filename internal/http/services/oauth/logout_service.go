package oauth

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/iam/internal/observability/logger"
	"github.com/dropDatabas3/iam/internal/validation"
)

// LogoutService revoca una refresh key. No toca el resto de la cadena.
type LogoutService interface {
	Logout(ctx context.Context, refreshKey string) error
}

type logoutService struct {
	deps Deps
}

func NewLogoutService(d Deps) LogoutService {
	d.defaults()
	return &logoutService{deps: d}
}

// Logout es idempotente: una key ya borrada no es error.
func (s *logoutService) Logout(ctx context.Context, refreshKey string) error {
	if !validation.ValidUUID(refreshKey) {
		return invalid("refreshToken", "Invalid refreshToken.")
	}
	n, err := s.deps.DAL.RefreshTokens().DeleteByKey(ctx, refreshKey)
	if err != nil {
		return fmt.Errorf("logout: delete refresh token: %w", err)
	}
	logger.From(ctx).Info("refresh token revoked",
		logger.Layer("service"), logger.Op("oauth.Logout"), logger.Count(int(n)))
	return nil
}
