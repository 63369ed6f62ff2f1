// Package password implementa el reset de password por código de email.
//
// Flujo: Request (crea el pedido y manda el código) → VerifyCode (marca el
// pedido como verificado) → Confirm (cambia el hash y borra el pedido).
package password

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	dto "github.com/dropDatabas3/iam/internal/http/dto/password"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	pw "github.com/dropDatabas3/iam/internal/security/password"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
	"github.com/dropDatabas3/iam/internal/validation"
)

// DefaultResetTTL es la vigencia de un pedido de reset.
const DefaultResetTTL = 15 * time.Minute

// CodeMailer entrega el código al usuario.
type CodeMailer interface {
	SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Deps contiene las dependencias del reset.
type Deps struct {
	DAL      repository.DataAccess
	Mailer   CodeMailer
	ResetTTL time.Duration
	Now      func() time.Time

	// HashCost 0 = password.DefaultCost.
	HashCost int
}

// ResetService define las tres etapas del reset.
type ResetService interface {
	Request(ctx context.Context, in dto.ResetRequest) (*dto.ResetResponse, error)
	VerifyCode(ctx context.Context, in dto.CodeRequest) error
	Confirm(ctx context.Context, in dto.ConfirmRequest) (*dto.ConfirmResponse, error)
}

// ValidationError es un parámetro faltante o mal formado.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// Errores del reset
var (
	ErrInvalidCode      = errors.New("invalid or wrong reset code")
	ErrInvalidRequest   = errors.New("invalid or expired reset request")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNotVerified      = errors.New("reset code not verified")
)

type resetService struct {
	deps Deps
}

func NewResetService(d Deps) ResetService {
	if d.ResetTTL <= 0 {
		d.ResetTTL = DefaultResetTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.HashCost == 0 {
		d.HashCost = pw.DefaultCost
	}
	return &resetService{deps: d}
}

func (s *resetService) Request(ctx context.Context, in dto.ResetRequest) (*dto.ResetResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("password.Request"))

	in.Email = strings.TrimSpace(in.Email)
	if !validation.ValidEmail(in.Email) {
		return nil, invalid("email", "Invalid email.")
	}
	if in.AuthReqPID != "" && !validation.ValidUUID(in.AuthReqPID) {
		return nil, invalid("pid", "Invalid pid.")
	}

	pid := tokens.NewKey()

	user, err := s.deps.DAL.Users().GetActiveByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			// pid que nunca se persiste: la respuesta es la misma exista o no la cuenta
			log.Debug("password reset for unknown email", logger.Email(in.Email))
			return &dto.ResetResponse{PassResetPID: pid}, nil
		}
		return nil, fmt.Errorf("password reset: lookup user: %w", err)
	}

	code, err := tokens.NewResetCode()
	if err != nil {
		return nil, fmt.Errorf("password reset: generate code: %w", err)
	}

	now := s.deps.Now()
	if err := s.deps.DAL.PasswordResets().Create(ctx, repository.PasswordResetRequest{
		PID:                     pid,
		Code:                    code,
		UserID:                  user.ID,
		AuthorizationRequestPID: in.AuthReqPID,
		ExpiresAt:               now.Add(s.deps.ResetTTL),
		CreatedAt:               now,
	}); err != nil {
		return nil, fmt.Errorf("password reset: create request: %w", err)
	}

	if err := s.deps.Mailer.SendResetCode(ctx, user.Email, code, s.deps.ResetTTL); err != nil {
		// sin código entregado el pedido no sirve
		_, _ = s.deps.DAL.PasswordResets().DeleteByPID(ctx, pid)
		return nil, err
	}

	log.Info("password reset requested", logger.UserID(user.ID))
	return &dto.ResetResponse{PassResetPID: pid}, nil
}

func (s *resetService) VerifyCode(ctx context.Context, in dto.CodeRequest) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("password.VerifyCode"))

	if !validation.ValidUUID(in.PassResetPID) {
		return invalid("pass_reset_pid", "Invalid pass_reset_pid.")
	}
	if len(in.Code) < tokens.ResetCodeLength {
		return invalid("code", fmt.Sprintf("Code must contain at least %d character(s).", tokens.ResetCodeLength))
	}

	req, err := s.live(ctx, in.PassResetPID)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return ErrInvalidCode
		}
		return err
	}

	if !tokens.Equal(req.Code, in.Code) {
		attempts, err := s.deps.DAL.PasswordResets().IncrementAttempts(ctx, req.PID)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("password reset: count attempt: %w", err)
		}
		if attempts >= repository.MaxResetAttempts {
			_, _ = s.deps.DAL.PasswordResets().DeleteByPID(ctx, req.PID)
			log.Warn("password reset discarded after too many attempts", logger.UserID(req.UserID))
		}
		return ErrInvalidCode
	}

	if _, err := s.deps.DAL.PasswordResets().MarkVerified(ctx, req.PID); err != nil {
		return fmt.Errorf("password reset: mark verified: %w", err)
	}
	return nil
}

func (s *resetService) Confirm(ctx context.Context, in dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("password.Confirm"))

	if !validation.ValidUUID(in.PassResetPID) {
		return nil, invalid("pass_reset_pid", "Invalid pass_reset_pid.")
	}

	req, err := s.live(ctx, in.PassResetPID)
	if err != nil {
		return nil, err
	}
	if !req.Verified {
		return nil, ErrNotVerified
	}

	if ok, _ := pw.DefaultPolicy.Validate(in.Password); !ok {
		return nil, invalid("password", fmt.Sprintf("Password must contain between %d and %d character(s).",
			pw.DefaultPolicy.MinLength, pw.DefaultPolicy.MaxLength))
	}
	if in.Password != in.PasswordConfirmation {
		return nil, ErrPasswordMismatch
	}

	hash, err := pw.HashWithCost(in.Password, s.deps.HashCost)
	if err != nil {
		return nil, fmt.Errorf("password reset: hash: %w", err)
	}

	err = s.deps.DAL.WithTx(ctx, func(tx repository.DataAccess) error {
		if err := tx.Users().UpdatePassword(ctx, req.UserID, hash); err != nil {
			if repository.IsNotFound(err) {
				return ErrInvalidRequest
			}
			return err
		}
		n, err := tx.PasswordResets().DeleteByPID(ctx, req.PID)
		if err != nil {
			return err
		}
		if n == 0 {
			// confirm concurrente
			return ErrInvalidRequest
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("password reset: confirm: %w", err)
	}

	log.Info("password reset confirmed", logger.UserID(req.UserID))
	return &dto.ConfirmResponse{AuthReqPID: req.AuthorizationRequestPID}, nil
}

// live retorna el pedido si existe y no expiró.
func (s *resetService) live(ctx context.Context, pid string) (*repository.PasswordResetRequest, error) {
	req, err := s.deps.DAL.PasswordResets().GetByPID(ctx, pid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidRequest
		}
		return nil, fmt.Errorf("password reset: lookup: %w", err)
	}
	if req.Expired(s.deps.Now()) {
		return nil, ErrInvalidRequest
	}
	return req, nil
}
