package register_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-register"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newFinalizeResetHandler(repo *MockRepositoryManager, opts ...register.HandlerOption) *register.FinalizePasswordResetHandler {
	return register.NewFinalizePasswordResetHandler(
		repo,
		register.NewPasswordHasher(),
		register.NewDefaultPasswordPolicy(),
		opts...,
	)
}

func TestFinalizePasswordResetReplacesHash(t *testing.T) {
	repo := NewMockRepositoryManager()
	id := uuid.New()

	var storedHash string
	repo.accounts.On("ResetPassword", mock.Anything, id, mock.Anything).
		Run(func(args mock.Arguments) {
			storedHash = args.String(2)
		}).
		Return(nil).Once()

	sink := &stubActivitySink{}
	handler := newFinalizeResetHandler(repo, register.WithHandlerActivitySink(sink))

	var resp *register.FinalizePasswordResetResponse
	err := handler.Execute(context.Background(), register.FinalizePasswordResetMessage{
		AccountID:       id,
		Password:        "fresh-pass-1",
		ConfirmPassword: "fresh-pass-1",
		OnResponse: func(r *register.FinalizePasswordResetResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, id.String(), resp.AccountID)

	require.NotEmpty(t, storedHash)
	require.NoError(t, register.ComparePasswordAndHash("fresh-pass-1", storedHash))

	assert.Contains(t, sink.eventTypes(), register.ActivityEventPasswordReset)
	repo.accounts.AssertExpectations(t)
}

func TestFinalizePasswordResetMismatch(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := newFinalizeResetHandler(repo)

	err := handler.Execute(context.Background(), register.FinalizePasswordResetMessage{
		AccountID:       uuid.New(),
		Password:        "fresh-pass-1",
		ConfirmPassword: "other-pass-2",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, register.ErrPasswordMismatch)
	repo.accounts.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizePasswordResetPolicyFailure(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := newFinalizeResetHandler(repo)

	err := handler.Execute(context.Background(), register.FinalizePasswordResetMessage{
		AccountID:       uuid.New(),
		Password:        "short",
		ConfirmPassword: "short",
	})
	require.Error(t, err)
	assert.True(t, register.HasTextCode(err, register.TextCodeValidationFailure))
	repo.accounts.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizePasswordResetRequiresAccountID(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := newFinalizeResetHandler(repo)

	err := handler.Execute(context.Background(), register.FinalizePasswordResetMessage{
		Password:        "fresh-pass-1",
		ConfirmPassword: "fresh-pass-1",
	})
	require.Error(t, err)
	assert.True(t, register.HasTextCode(err, register.TextCodeValidationFailure))
}
