package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockquote-alert/internal/errors"
	"stockquote-alert/internal/logging"
	"stockquote-alert/pkg/utils"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	SenderEmail    string
	SMTPServer     string
	SMTPPort       int
	SMTPUser       string // display name on the From header
	SMTPPass       string
	RecipientEmail string
}

// EmailDispatcher sends alerts over SMTP. Port 465 uses implicit TLS; any
// other port upgrades with STARTTLS when the server offers it.
type EmailDispatcher struct {
	cfg       EmailConfig
	tlsConfig *tls.Config
	dialRetry utils.RetryConfig
	now       func() time.Time
	log       zerolog.Logger
}

// NewEmailDispatcher creates an e-mail dispatcher.
func NewEmailDispatcher(cfg EmailConfig, log zerolog.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.SMTPServer, MinVersion: tls.VersionTLS12},
		// one redial for a refused or reset connection; protocol errors are final
		dialRetry: utils.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  250 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2,
		},
		now: time.Now,
		log: logging.WithComponent(log, "email"),
	}
}

// Name returns the channel name.
func (e *EmailDispatcher) Name() string {
	return "email"
}

// Configured reports whether enough settings are present to send mail.
func (e *EmailDispatcher) Configured() bool {
	return e.cfg.SMTPServer != "" && e.cfg.SMTPPort > 0 &&
		e.cfg.SenderEmail != "" && e.cfg.RecipientEmail != ""
}

// Send delivers an HTML message. When the dispatcher is not configured it
// logs a warning and returns nil.
func (e *EmailDispatcher) Send(ctx context.Context, subject, body string) error {
	if !e.Configured() {
		e.log.Warn().Str("subject", subject).Msg("Email settings incomplete, alert not sent")
		return nil
	}

	msg := e.buildMessage(subject, body)
	if err := e.deliver(ctx, msg); err != nil {
		return errors.NewDispatchError(e.Name(), "send to "+e.cfg.RecipientEmail, err)
	}

	e.log.Info().Str("recipient", e.cfg.RecipientEmail).Msg("Email successfully sent")
	return nil
}

func (e *EmailDispatcher) buildMessage(subject, body string) []byte {
	from := mail.Address{Name: e.cfg.SMTPUser, Address: e.cfg.SenderEmail}
	to := mail.Address{Address: e.cfg.RecipientEmail}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from.String())
	fmt.Fprintf(&sb, "To: %s\r\n", to.String())
	fmt.Fprintf(&sb, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&sb, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(sb.String())
}

func (e *EmailDispatcher) deliver(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.cfg.SMTPServer, strconv.Itoa(e.cfg.SMTPPort))

	var d net.Dialer
	conn, err := utils.RetryWithResult(ctx, e.dialRetry, func() (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Implicit TLS on port 465
	if e.cfg.SMTPPort == 465 {
		tlsConn := tls.Client(conn, e.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, e.cfg.SMTPServer)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if e.cfg.SMTPPort != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(e.tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if e.cfg.SMTPPass != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", e.cfg.SenderEmail, e.cfg.SMTPPass, e.cfg.SMTPServer)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("SMTP auth failed: %w", err)
			}
		}
	}

	if err := client.Mail(e.cfg.SenderEmail); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	if err := client.Rcpt(e.cfg.RecipientEmail); err != nil {
		return fmt.Errorf("SMTP RCPT command failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
