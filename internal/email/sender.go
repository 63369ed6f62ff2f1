package email

import (
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/dropDatabas3/iam/internal/observability/logger"
	mail "github.com/go-mail/mail"
)

// Sender envía un email con cuerpo texto y, opcionalmente, HTML.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPConfig configura el SMTPSender.
type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	Username           string
	Password           string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.L().With(
		logger.Component("smtp"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// multipart/alternative si hay ambos
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, // solo dev
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent")
	return nil
}

// LogSender no envía nada: loguea el mensaje. Para desarrollo y tests.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

// Message es un email capturado por LogSender.
type Message struct {
	To, Subject, HTML, Text string
}

func (s *LogSender) Send(to, subject, htmlBody, textBody string) error {
	s.mu.Lock()
	s.sent = append(s.sent, Message{To: to, Subject: subject, HTML: htmlBody, Text: textBody})
	s.mu.Unlock()

	logger.L().Info("email (log sender)",
		logger.Component("email"),
		logger.String("to", to),
		logger.String("subject", subject),
	)
	return nil
}

// Sent retorna una copia de los mensajes capturados.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
