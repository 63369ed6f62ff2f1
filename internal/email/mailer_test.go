package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMailerSendResetCode(t *testing.T) {
	s := &LogSender{}
	m := NewMailer(s, "")
	if err := m.SendResetCode(context.Background(), "ada@example.com", "123456", 15*time.Minute); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := s.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	msg := sent[0]
	if msg.To != "ada@example.com" || !strings.Contains(msg.Text, "123456") || !strings.Contains(msg.Text, "15 minutes") {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !strings.HasPrefix(msg.Subject, "IAM") {
		t.Fatalf("subject = %q", msg.Subject)
	}
}

type failingSender struct{}

func (failingSender) Send(string, string, string, string) error { return errors.New("smtp down") }

func TestMailerPropagatesErrors(t *testing.T) {
	m := NewMailer(failingSender{}, "Acme")
	if err := m.SendResetCode(context.Background(), "a@b.c", "000000", time.Minute); err == nil {
		t.Fatal("expected error")
	}
}
