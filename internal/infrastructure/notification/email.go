package notification

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/infrastructure/config"
)

var (
	// ErrSMTPNotConfigured indicates the shared SMTP transport is unset
	ErrSMTPNotConfigured = errors.New("notification: smtp transport not configured")
	// ErrNoRecipient indicates the shop has no notification address
	ErrNoRecipient = errors.New("notification: recipient address is empty")
)

// sendMailFunc matches smtp.SendMail; injectable for tests
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends conversion notices over the shared SMTP transport.
// The per-shop recipient comes from the shop's notification settings.
type EmailNotifier struct {
	cfg      config.NotificationConfig
	logger   *zap.Logger
	sendMail sendMailFunc
}

// NewEmailNotifier creates an email notifier from the transport config
func NewEmailNotifier(cfg config.NotificationConfig, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		cfg:      cfg,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Channel names the transport
func (n *EmailNotifier) Channel() string {
	return "email"
}

// Notify sends the notice to the given address. The send runs in its own
// goroutine bounded by the configured timeout so a slow SMTP server cannot
// stall the dispatcher.
func (n *EmailNotifier) Notify(ctx context.Context, destination string, notice bundling.ConversionNotice) error {
	to := strings.TrimSpace(destination)
	if to == "" {
		return ErrNoRecipient
	}
	if n.cfg.SMTPHost == "" || n.cfg.FromAddress == "" {
		return ErrSMTPNotConfigured
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.cfg.FromAddress, to, subject(notice), body(notice))

	var auth smtp.Auth
	if n.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)

	timeout := n.cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- n.sendMail(addr, auth, n.cfg.FromAddress, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return sendCtx.Err()
	}
}

// Ensure EmailNotifier implements the notifier port
var _ bundling.ConversionNotifier = (*EmailNotifier)(nil)
