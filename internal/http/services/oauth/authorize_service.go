package oauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
	"github.com/dropDatabas3/iam/internal/validation"
)

// AuthorizeService crea el AuthorizationRequest que inicia el flujo.
type AuthorizeService interface {
	// Authorize valida los parámetros y retorna el pid del pedido creado.
	Authorize(ctx context.Context, in dto.AuthorizeRequest) (pid string, err error)
}

type authorizeService struct {
	deps Deps
}

func NewAuthorizeService(d Deps) AuthorizeService {
	d.defaults()
	return &authorizeService{deps: d}
}

func (s *authorizeService) Authorize(ctx context.Context, in dto.AuthorizeRequest) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.Authorize"),
		logger.ClientID(in.ClientID),
	)

	if err := validateAuthorize(in); err != nil {
		return "", err
	}

	app, err := s.deps.Applications.GetByClientID(ctx, in.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", ErrApplicationNotFound
		}
		return "", fmt.Errorf("authorize: lookup application: %w", err)
	}

	// match exacto, sin normalizar
	if app.CallbackURL != in.RedirectURL {
		log.Debug("redirect url mismatch", logger.String("redirect_url", in.RedirectURL))
		return "", ErrRedirectMismatch
	}

	pid := tokens.NewKey()
	err = s.deps.DAL.AuthorizationRequests().Create(ctx, repository.AuthorizationRequest{
		PID:          pid,
		ClientID:     in.ClientID,
		ResponseType: in.ResponseType,
		RedirectURL:  in.RedirectURL,
		Scope:        in.Scope,
		State:        in.State,
		CreatedAt:    s.deps.Now(),
	})
	if err != nil {
		if repository.IsConflict(err) {
			return "", ErrDuplicateState
		}
		return "", fmt.Errorf("authorize: create request: %w", err)
	}

	log.Info("authorization request created", logger.PID(pid), logger.Scope(in.Scope))
	return pid, nil
}

func validateAuthorize(in dto.AuthorizeRequest) error {
	switch {
	case in.ResponseType != "code":
		return invalid("response_type", `Invalid response_type: expected "code".`)
	case !validation.ValidUUID(in.ClientID):
		return invalid("client_id", "Invalid client_id.")
	case !validation.ValidAbsoluteURL(in.RedirectURL):
		return invalid("redirect_url", "Invalid redirect_url.")
	case !validation.ValidScope(in.Scope):
		return invalid("scope", "Invalid scope: use a space separated subset of "+strings.Join(validation.SupportedScopes, ", ")+".")
	case strings.TrimSpace(in.State) == "":
		return invalid("state", "Missing state.")
	}
	return nil
}
