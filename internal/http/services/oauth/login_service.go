package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	"github.com/dropDatabas3/iam/internal/security/password"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
	"github.com/dropDatabas3/iam/internal/validation"
)

// LoginService cambia credenciales + pid por un authorization code.
type LoginService interface {
	Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error)
}

type loginService struct {
	deps     Deps
	verifier *CredentialVerifier
}

func NewLoginService(d Deps, v *CredentialVerifier) LoginService {
	d.defaults()
	if v == nil {
		v = NewCredentialVerifier(d.DAL.Users())
	}
	return &loginService{deps: d, verifier: v}
}

func (s *loginService) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.Login"),
		logger.PID(in.PID),
	)

	in.Email = strings.TrimSpace(in.Email)
	switch {
	case !validation.ValidUUID(in.PID):
		return nil, invalid("pid", "Invalid pid.")
	case !validation.ValidEmail(in.Email):
		return nil, invalid("email", "Invalid email.")
	case len(in.Password) < password.MinLength:
		return nil, invalid("password", fmt.Sprintf("Password must contain at least %d character(s).", password.MinLength))
	}

	user, err := s.verifier.Verify(ctx, in.Email, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			s.deps.Metrics.LoginFailed("user_not_found")
		case errors.Is(err, ErrInvalidCredentials):
			s.deps.Metrics.LoginFailed("bad_password")
		default:
			return nil, err
		}
		log.Info("credentials rejected", logger.Email(in.Email), logger.Err(err))
		// el cliente no distingue usuario inexistente de password incorrecto
		return nil, ErrInvalidCredentials
	}

	req, err := s.deps.DAL.AuthorizationRequests().GetByPID(ctx, in.PID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrMissingAuthorizationReq
		}
		return nil, fmt.Errorf("login: lookup request: %w", err)
	}

	code, err := tokens.NewAuthorizationCode()
	if err != nil {
		return nil, fmt.Errorf("login: generate code: %w", err)
	}

	err = s.deps.DAL.WithTx(ctx, func(tx repository.DataAccess) error {
		if err := tx.AuthorizationCodes().Create(ctx, repository.AuthorizationCode{
			Code:         code,
			UserID:       user.ID,
			ClientID:     req.ClientID,
			Scope:        req.Scope,
			RedirectURL:  req.RedirectURL,
			ResponseType: req.ResponseType,
			ExpiresAt:    s.deps.Now().Add(repository.AuthorizationCodeTTL),
		}); err != nil {
			return err
		}
		n, err := tx.AuthorizationRequests().DeleteByPID(ctx, in.PID)
		if err != nil {
			return err
		}
		if n == 0 {
			// otro login concurrente consumió el pedido
			return ErrMissingAuthorizationReq
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMissingAuthorizationReq) {
			return nil, err
		}
		return nil, fmt.Errorf("login: issue code: %w", err)
	}

	log.Info("authorization code issued", logger.UserID(user.ID), logger.ClientID(req.ClientID))
	return &dto.LoginResponse{Code: code, State: req.State, RedirectURL: req.RedirectURL}, nil
}
