package register_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-register"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordResetSendsCode(t *testing.T) {
	repo := NewMockRepositoryManager()
	codes := &MockCodeManager{}
	mailer := newCaptureMailer()

	account := &register.Account{
		ID:        uuid.New(),
		Email:     "tester@example.com",
		FirstName: "Test",
		Status:    register.StatusDone,
	}

	repo.accounts.On("GetByEmail", mock.Anything, "tester@example.com").
		Return(account, nil).Once()
	codes.On("Issue", mock.Anything, account.ID).
		Return(&register.VerificationCode{
			AccountID: account.ID,
			Code:      "4321",
			ExpiresAt: time.Now().Add(register.DefaultCodeTTL),
		}, nil).Once()

	sink := &stubActivitySink{}
	handler := register.NewInitializePasswordResetHandler(repo, codes, mailer,
		register.WithHandlerActivitySink(sink),
	)

	var resp *register.InitializePasswordResetResponse
	err := handler.Execute(context.Background(), register.InitializePasswordResetMessage{
		Email: "tester@example.com",
		OnResponse: func(r *register.InitializePasswordResetResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, account.ID.String(), resp.AccountID)

	msg := mailer.waitForMail(t)
	assert.Equal(t, register.TemplatePasswordReset, msg.Template)
	assert.Equal(t, "tester@example.com", msg.Recipient)
	assert.Equal(t, "4321", msg.Variables["code"])

	assert.Contains(t, sink.eventTypes(), register.ActivityEventCodeIssued)
	repo.accounts.AssertExpectations(t)
	codes.AssertExpectations(t)
}

func TestInitializePasswordResetUnknownEmail(t *testing.T) {
	repo := NewMockRepositoryManager()
	codes := &MockCodeManager{}

	repo.accounts.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()

	handler := register.NewInitializePasswordResetHandler(repo, codes, nil)

	// unlike login, this flow tells the caller the account does not exist
	err := handler.Execute(context.Background(), register.InitializePasswordResetMessage{
		Email: "ghost@example.com",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, register.ErrAccountNotFound)
	codes.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestInitializePasswordResetRateLimited(t *testing.T) {
	repo := NewMockRepositoryManager()
	codes := &MockCodeManager{}

	account := &register.Account{
		ID:    uuid.New(),
		Email: "tester@example.com",
	}

	repo.accounts.On("GetByEmail", mock.Anything, "tester@example.com").
		Return(account, nil).Once()
	codes.On("Issue", mock.Anything, account.ID).
		Return(nil, register.ErrCodeStillActive).Once()

	handler := register.NewInitializePasswordResetHandler(repo, codes, nil)

	err := handler.Execute(context.Background(), register.InitializePasswordResetMessage{
		Email: "tester@example.com",
	})
	require.Error(t, err)
	assert.True(t, register.IsRateLimited(err))
}
