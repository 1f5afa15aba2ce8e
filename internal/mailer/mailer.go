package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/minhacidade/backend/internal/config"
)

// Message representa um e-mail transacional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer envia mensagens transacionais.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New escolhe o relay SMTP quando configurado ou o mailer de log.
func New(cfg config.SMTPConfig, logger zerolog.Logger) (Mailer, error) {
	if !cfg.Enabled() {
		logger.Warn().Msg("SMTP_HOST vazio: e-mails serão apenas registrados em log")
		return LogMailer{logger: logger}, nil
	}
	return NewSMTP(cfg)
}

// SMTPMailer envia pelo relay configurado.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTP cria cliente SMTP com STARTTLS oportunista e autenticação quando houver usuário.
func NewSMTP(cfg config.SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Pass),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send monta e entrega a mensagem.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return fmt.Errorf("remetente inválido: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("destinatário inválido: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// LogMailer apenas registra a mensagem (desenvolvimento e testes).
type LogMailer struct {
	logger zerolog.Logger
}

// Send registra destinatário e assunto.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("body", msg.Text).Msg("email não enviado (SMTP desabilitado)")
	return nil
}
