// Пакет mailer — отправка писем через SMTP.
// Сбои отправки логируются вызывающей стороной и никогда не откатывают
// уже зафиксированные изменения состояния.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Sender — интерфейс отправки писем.
// Реализации: SMTPSender, NoopSender.
type Sender interface {
	// Send отправляет HTML-письмо получателю.
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPSender — отправка писем через SMTP (wneessen/go-mail).
type SMTPSender struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPSender создаёт SMTP-отправитель.
// При пустых user/password аутентификация не используется (dev-среда).
func NewSMTPSender(host string, port int, user, password, from string, logger *slog.Logger) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("создание SMTP-клиента: %w", err)
	}

	return &SMTPSender{
		client: client,
		from:   from,
		logger: logger.With(slog.String("component", "smtp_sender")),
	}, nil
}

// Send отправляет HTML-письмо.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("некорректный адрес отправителя %q: %w", s.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("некорректный адрес получателя %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}

	s.logger.Debug("Письмо отправлено",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

// NoopSender — заглушка отправителя для сред без SMTP.
// Письма не отправляются, факт вызова логируется на уровне debug.
type NoopSender struct {
	logger *slog.Logger
}

// NewNoopSender создаёт заглушку отправителя.
func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger.With(slog.String("component", "noop_sender"))}
}

// Send ничего не отправляет.
func (s *NoopSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Debug("Отправка писем отключена, письмо пропущено",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}
