package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// TLS modes for SMTPConfig.TLS.
const (
	TLSStartTLS = "starttls"
	TLSImplicit = "ssl"
	TLSNone     = "none"
)

// SMTPConfig configures an SMTPNotifier.
type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	// Sender defaults to Username.
	Sender    string
	Recipient string
	// TLS is one of TLSStartTLS, TLSImplicit or TLSNone. Empty picks
	// TLSImplicit for port 465 and TLSStartTLS otherwise.
	TLS     string
	Timeout time.Duration
}

// SMTPNotifier sends messages through an SMTP server.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPNotifier validates cfg and returns a notifier. No connection is made
// until Notify.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Server == "" {
		return nil, errors.New("smtp: server is required")
	}
	if cfg.Recipient == "" {
		return nil, errors.New("smtp: recipient is required")
	}
	if cfg.Sender == "" {
		cfg.Sender = cfg.Username
	}
	if cfg.Sender == "" {
		return nil, errors.New("smtp: sender or username is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSStartTLS
		if cfg.Port == 465 {
			cfg.TLS = TLSImplicit
		}
	}
	switch cfg.TLS {
	case TLSStartTLS, TLSImplicit, TLSNone:
	default:
		return nil, fmt.Errorf("smtp: unknown tls mode %q", cfg.TLS)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPNotifier{cfg: cfg, logger: logger}, nil
}

func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTimeout(n.cfg.Timeout),
	}
	switch n.cfg.TLS {
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return opts
}

func (n *SMTPNotifier) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.Sender); err != nil {
		return nil, fmt.Errorf("smtp: sender %q: %w", n.cfg.Sender, err)
	}
	recipients := strings.Split(n.cfg.Recipient, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}
	if err := m.To(recipients...); err != nil {
		return nil, fmt.Errorf("smtp: recipient %q: %w", n.cfg.Recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// Notify sends msg. The connection lives for the duration of the call.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	m, err := n.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(n.cfg.Server, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp: new client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp: send via %s:%d: %w", n.cfg.Server, n.cfg.Port, err)
	}
	n.logger.InfoContext(ctx, "notification sent",
		"server", n.cfg.Server,
		"recipient", n.cfg.Recipient,
		"subject", msg.Subject,
		"duration", time.Since(start),
	)
	return nil
}
