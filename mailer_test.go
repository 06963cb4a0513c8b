package register_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateMailerRendersVerificationCode(t *testing.T) {
	var gotRecipient, gotSubject, gotBody string

	mailer, err := register.NewTemplateMailer(
		register.WithMailTransport(register.MailTransportFunc(func(_ context.Context, recipient, subject, body string) error {
			gotRecipient = recipient
			gotSubject = subject
			gotBody = body
			return nil
		})),
	)
	require.NoError(t, err)

	err = mailer.Send(context.Background(), register.MailMessage{
		Template:  register.TemplateVerificationCode,
		Recipient: "tester@example.com",
		Variables: map[string]any{
			"first_name":  "Test",
			"code":        "1234",
			"ttl_minutes": 5,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "tester@example.com", gotRecipient)
	assert.Equal(t, "Your verification code", gotSubject)
	assert.Contains(t, gotBody, "1234")
	assert.Contains(t, gotBody, "Test")
	assert.Contains(t, gotBody, "5 minutes")
}

func TestTemplateMailerRendersPasswordReset(t *testing.T) {
	var gotSubject, gotBody string

	mailer, err := register.NewTemplateMailer(
		register.WithMailTransport(register.MailTransportFunc(func(_ context.Context, _, subject, body string) error {
			gotSubject = subject
			gotBody = body
			return nil
		})),
	)
	require.NoError(t, err)

	err = mailer.Send(context.Background(), register.MailMessage{
		Template:  register.TemplatePasswordReset,
		Recipient: "tester@example.com",
		Variables: map[string]any{
			"email":       "tester@example.com",
			"code":        "4321",
			"ttl_minutes": 5,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Reset your password", gotSubject)
	assert.Contains(t, gotBody, "4321")
	assert.Contains(t, gotBody, "tester@example.com")
}

func TestTemplateMailerCustomSubject(t *testing.T) {
	var gotSubject string

	mailer, err := register.NewTemplateMailer(
		register.WithMailSubject(register.TemplateVerificationCode, "Welcome aboard"),
		register.WithMailTransport(register.MailTransportFunc(func(_ context.Context, _, subject, _ string) error {
			gotSubject = subject
			return nil
		})),
	)
	require.NoError(t, err)

	err = mailer.Send(context.Background(), register.MailMessage{
		Template:  register.TemplateVerificationCode,
		Recipient: "tester@example.com",
		Variables: map[string]any{"code": "1234", "ttl_minutes": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard", gotSubject)
}

func TestTemplateMailerUnknownTemplate(t *testing.T) {
	mailer, err := register.NewTemplateMailer(
		register.WithMailTransport(register.MailTransportFunc(func(_ context.Context, _, _, _ string) error {
			t.Fatal("transport must not run for unknown templates")
			return nil
		})),
	)
	require.NoError(t, err)

	err = mailer.Send(context.Background(), register.MailMessage{
		Template:  "no_such_template",
		Recipient: "tester@example.com",
	})
	require.Error(t, err)
}
