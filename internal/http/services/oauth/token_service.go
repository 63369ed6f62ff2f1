package oauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	dto "github.com/dropDatabas3/iam/internal/http/dto/oauth"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
	"github.com/dropDatabas3/iam/internal/validation"
	"go.uber.org/zap"
)

// TokenService canjea un code o un refresh token por el trío de tokens.
type TokenService interface {
	Exchange(ctx context.Context, in dto.TokenRequest) (*dto.TokenResponse, error)
}

type tokenService struct {
	deps Deps
}

func NewTokenService(d Deps) TokenService {
	d.defaults()
	return &tokenService{deps: d}
}

// grantSubject es lo que resuelve cada rama antes de emitir.
type grantSubject struct {
	user  *repository.User
	scope string
}

func (s *tokenService) Exchange(ctx context.Context, in dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.Token"),
		logger.GrantType(in.GrantType),
		logger.ClientID(in.ClientID),
	)

	if err := validateToken(in); err != nil {
		return nil, err
	}

	// fuera de cualquier transacción: en sqlite hay una sola conexión
	app, err := s.deps.Applications.GetByClientID(ctx, in.ClientID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("token: lookup application: %w", err)
	}

	var (
		subj *grantSubject
		res  *dto.TokenResponse
	)
	switch in.GrantType {
	case dto.GrantAuthorizationCode:
		subj, err = s.fromAuthorizationCode(ctx, in)
		if err != nil {
			return nil, err
		}
		res, err = s.issue(ctx, s.deps.DAL, app, in.ClientSecret, subj, nil)
	case dto.GrantRefreshToken:
		subj, res, err = s.fromRefreshToken(ctx, in, app, log)
	default:
		return nil, ErrUnsupportedGrantType
	}
	if err != nil {
		if errors.Is(err, ErrReplayDetected) {
			s.deps.Metrics.ReplayDetected()
		}
		return nil, err
	}

	s.deps.Metrics.TokenIssued(in.GrantType)
	log.Info("tokens issued", logger.UserID(subj.user.ID), logger.Scope(subj.scope))
	return res, nil
}

// issue valida el secret, emite el trío y guarda la fila del refresh. parent
// es la key rotada (nil en el grant de code). dal puede ser una transacción.
func (s *tokenService) issue(ctx context.Context, dal repository.DataAccess, app *repository.Application, secret string, subj *grantSubject, parent *string) (*dto.TokenResponse, error) {
	if app == nil || !tokens.Equal(app.SecretID, secret) {
		return nil, ErrInvalidSecret
	}

	perms, err := dal.Users().ResolvePermissions(ctx, subj.user.ID, app.ID)
	if err != nil {
		return nil, fmt.Errorf("token: resolve permissions: %w", err)
	}

	set, err := s.deps.Issuer.Issue(app, subj.user, perms, subj.scope)
	if err != nil {
		return nil, fmt.Errorf("token: issue: %w", err)
	}

	row := repository.RefreshToken{
		Key:           tokens.NewKey(),
		Token:         set.RefreshToken,
		DescendantKey: parent,
		ExpiresAt:     set.RefreshClaims.ExpiresAt.Time,
		CreatedAt:     s.deps.Now(),
	}
	if err := dal.RefreshTokens().Create(ctx, row); err != nil {
		if repository.IsConflict(err) {
			// descendant_key es UNIQUE: otra rotación de la misma key ganó
			return nil, ErrReplayDetected
		}
		return nil, fmt.Errorf("token: store refresh token: %w", err)
	}

	return &dto.TokenResponse{
		IDToken:          set.IDToken,
		AccessToken:      set.AccessToken,
		RefreshToken:     row.Key,
		User:             set.User,
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *tokenService) fromAuthorizationCode(ctx context.Context, in dto.TokenRequest) (*grantSubject, error) {
	var subj *grantSubject
	err := s.deps.DAL.WithTx(ctx, func(tx repository.DataAccess) error {
		code, err := tx.AuthorizationCodes().GetByCode(ctx, in.Code)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrCodeNotFound
			}
			return err
		}
		if code.Expired(s.deps.Now()) {
			return ErrCodeExpired
		}
		if code.RedirectURL != in.RedirectURL {
			return ErrRedirectMismatch
		}
		if code.ClientID != in.ClientID {
			return ErrClientMismatch
		}

		user, err := tx.Users().GetByID(ctx, code.UserID, true)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}

		n, err := tx.AuthorizationCodes().DeleteByID(ctx, code.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			// canje concurrente del mismo code
			return ErrCodeNotFound
		}
		subj = &grantSubject{user: user, scope: code.Scope}
		return nil
	})
	if err != nil {
		return nil, wrapInternal("token: authorization code", err)
	}
	return subj, nil
}

// fromRefreshToken rota la key en una sola transacción: marca la fila padre
// como rotada e inserta la hija. Presentar una fila ya rotada es un replay y
// purga el linaje entero.
func (s *tokenService) fromRefreshToken(ctx context.Context, in dto.TokenRequest, app *repository.Application, log *zap.Logger) (*grantSubject, *dto.TokenResponse, error) {
	var (
		subj   *grantSubject
		res    *dto.TokenResponse
		replay bool
	)
	err := s.deps.DAL.WithTx(ctx, func(tx repository.DataAccess) error {
		row, err := tx.RefreshTokens().GetByKey(ctx, in.RefreshToken)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrRefreshTokenNotFound
			}
			return err
		}

		if row.RotatedAt != nil {
			n, err := tx.RefreshTokens().PurgeChain(ctx, row.Key)
			if err != nil {
				return err
			}
			log.Warn("refresh token replay detected, chain purged", logger.Int64("purged", n))
			replay = true
			return nil // commit de la purga
		}

		claims, err := s.deps.Issuer.ParseRefresh(row.Token, in.ClientSecret)
		if err != nil {
			log.Debug("stored refresh token rejected", logger.Err(err))
			return ErrInvalidRefreshToken
		}
		if claims.AuthorizedParty != in.ClientID {
			return ErrClientMismatch
		}
		uid, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return ErrInvalidRefreshToken
		}

		user, err := tx.Users().GetByID(ctx, uid, true)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}
		subj = &grantSubject{user: user, scope: claims.Scope}

		n, err := tx.RefreshTokens().MarkRotated(ctx, row.Key, s.deps.Now())
		if err != nil {
			return err
		}
		if n == 0 {
			log.Warn("concurrent refresh rotation lost")
			return ErrReplayDetected
		}

		parent := row.Key
		res, err = s.issue(ctx, tx, app, in.ClientSecret, subj, &parent)
		return err
	})
	if err != nil {
		return nil, nil, wrapInternal("token: refresh token", err)
	}
	if replay {
		return nil, nil, ErrReplayDetected
	}
	return subj, res, nil
}

func validateToken(in dto.TokenRequest) error {
	switch {
	case in.GrantType != dto.GrantAuthorizationCode && in.GrantType != dto.GrantRefreshToken:
		return invalid("grant_type", `Invalid grant_type: expected "authorization_code" or "refresh_token".`)
	case !validation.ValidUUID(in.ClientID):
		return invalid("client_id", "Invalid client_id.")
	case !validation.ValidAbsoluteURL(in.RedirectURL):
		return invalid("redirect_url", "Invalid redirect_url.")
	case strings.TrimSpace(in.ClientSecret) == "":
		return invalid("client_secret", "Missing client_secret.")
	case in.GrantType == dto.GrantAuthorizationCode && in.Code == "",
		in.GrantType == dto.GrantRefreshToken && in.RefreshToken == "":
		return invalid("code", "`code` and/or `refresh_token` is required given the grant_type")
	}
	return nil
}

// wrapInternal deja pasar los errores del flujo y envuelve el resto.
func wrapInternal(op string, err error) error {
	if isFlowError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isFlowError(err error) bool {
	if _, ok := IsValidation(err); ok {
		return true
	}
	for _, target := range []error{
		ErrCodeNotFound, ErrCodeExpired, ErrRedirectMismatch, ErrClientMismatch,
		ErrUserNotFound, ErrRefreshTokenNotFound, ErrInvalidRefreshToken,
		ErrInvalidSecret, ErrReplayDetected,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

