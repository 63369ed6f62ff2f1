package email

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// Mailer arma los mensajes del flujo de reset.
type Mailer struct {
	Sender  Sender
	Product string // nombre visible en el asunto
}

func NewMailer(s Sender, product string) *Mailer {
	if product == "" {
		product = "IAM"
	}
	return &Mailer{Sender: s, Product: product}
}

// SendResetCode envía el código de 6 dígitos. ttl se informa en el cuerpo.
func (m *Mailer) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s password reset code", m.Product)
	text := fmt.Sprintf(
		"Your password reset code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this message.\n",
		code, int(ttl.Minutes()))

	if err := m.Sender.Send(to, subject, "", text); err != nil {
		logger.From(ctx).Warn("reset code delivery failed", logger.Layer("email"), logger.Err(err))
		return fmt.Errorf("email: send reset code: %w", err)
	}
	return nil
}
