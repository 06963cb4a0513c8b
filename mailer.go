package register

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// Email template names understood by the default mailer.
const (
	TemplateVerificationCode = "verification_code"
	TemplatePasswordReset    = "password_reset"
)

// MailTransport delivers a rendered message. The default transport only
// logs, which is enough for development and tests.
type MailTransport interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// MailTransportFunc adapts a function to the MailTransport interface.
type MailTransportFunc func(ctx context.Context, recipient, subject, body string) error

// Deliver implements MailTransport.
func (f MailTransportFunc) Deliver(ctx context.Context, recipient, subject, body string) error {
	return f(ctx, recipient, subject, body)
}

type logTransport struct {
	logger Logger
}

func (t logTransport) Deliver(_ context.Context, recipient, subject, body string) error {
	t.logger.Info("mail to=%s subject=%q bytes=%d", recipient, subject, len(body))
	return nil
}

// TemplateMailer renders embedded django templates and hands the result
// to a transport.
type TemplateMailer struct {
	engine    *django.Engine
	transport MailTransport
	logger    Logger
	subjects  map[string]string
}

var _ Mailer = (*TemplateMailer)(nil)

// TemplateMailerOption customizes the mailer.
type TemplateMailerOption func(*TemplateMailer)

// WithMailTransport sets the delivery transport.
func WithMailTransport(transport MailTransport) TemplateMailerOption {
	return func(m *TemplateMailer) {
		if transport != nil {
			m.transport = transport
		}
	}
}

// WithMailLogger overrides the mailer logger.
func WithMailLogger(logger Logger) TemplateMailerOption {
	return func(m *TemplateMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMailSubject overrides the subject line for a template.
func WithMailSubject(template, subject string) TemplateMailerOption {
	return func(m *TemplateMailer) {
		m.subjects[template] = subject
	}
}

// NewTemplateMailer builds a mailer over the embedded email templates.
func NewTemplateMailer(opts ...TemplateMailerOption) (*TemplateMailer, error) {
	templates, err := fs.Sub(GetEmailTemplatesFS(), "templates/emails")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open email templates")
	}

	engine := django.NewFileSystem(http.FS(templates), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	m := &TemplateMailer{
		engine: engine,
		logger: defLogger{},
		subjects: map[string]string{
			TemplateVerificationCode: "Your verification code",
			TemplatePasswordReset:    "Reset your password",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.transport == nil {
		m.transport = logTransport{logger: m.logger}
	}

	return m, nil
}

// Send implements Mailer.
func (m *TemplateMailer) Send(ctx context.Context, msg MailMessage) error {
	var body bytes.Buffer
	if err := m.engine.Render(&body, msg.Template, msg.Variables); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{
				"template": msg.Template,
			})
	}

	subject := m.subjects[msg.Template]
	if subject == "" {
		subject = "Notification"
	}

	return m.transport.Deliver(ctx, msg.Recipient, subject, body.String())
}

// dispatchMail delivers a message off the request path. Failures are
// logged, never returned: registration flows do not block on email.
func dispatchMail(logger Logger, mailer Mailer, msg MailMessage) {
	if mailer == nil {
		return
	}
	if logger == nil {
		logger = defLogger{}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := mailer.Send(ctx, msg); err != nil {
			logger.Error("mail dispatch failed template=%s to=%s: %v", msg.Template, msg.Recipient, err)
		}
	}()
}
