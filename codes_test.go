package register_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-register"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := register.GenerateNumericCode(register.DefaultCodeLength)
		require.NoError(t, err)
		require.Len(t, code, 4)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "expected digit, got %q", r)
		}
	}
}

func TestCodeManagerIssueComputesAbsoluteExpiry(t *testing.T) {
	repo := &MockVerificationCodes{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()

	var issuedCode string
	repo.On("Issue", mock.Anything, accountID, mock.Anything, now.Add(register.DefaultCodeTTL), now).
		Run(func(args mock.Arguments) {
			issuedCode = args.String(2)
		}).
		Return(&register.VerificationCode{AccountID: accountID, ExpiresAt: now.Add(register.DefaultCodeTTL)}, nil).
		Once()

	manager := register.NewCodeManager(repo,
		register.WithCodeClock(func() time.Time { return now }),
	)

	code, err := manager.Issue(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), code.ExpiresAt)
	assert.Len(t, issuedCode, 4)
	repo.AssertExpectations(t)
}

func TestCodeManagerIssuePropagatesActiveCodeError(t *testing.T) {
	repo := &MockVerificationCodes{}
	accountID := uuid.New()

	repo.On("Issue", mock.Anything, accountID, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, register.ErrCodeStillActive).
		Once()

	manager := register.NewCodeManager(repo)

	_, err := manager.Issue(context.Background(), accountID)
	require.Error(t, err)
	assert.True(t, register.IsRateLimited(err))
}

func TestCodeManagerVerifyUsesClock(t *testing.T) {
	repo := &MockVerificationCodes{}
	now := time.Date(2026, 3, 1, 9, 4, 59, 0, time.UTC)
	accountID := uuid.New()

	repo.On("Confirm", mock.Anything, accountID, "0042", now).
		Return(&register.VerificationCode{AccountID: accountID, Code: "0042", Confirmed: true}, nil).
		Once()

	manager := register.NewCodeManager(repo,
		register.WithCodeClock(func() time.Time { return now }),
	)

	code, err := manager.Verify(context.Background(), accountID, "0042")
	require.NoError(t, err)
	assert.True(t, code.Confirmed)
	repo.AssertExpectations(t)
}

func TestCodeManagerCustomTTLAndLength(t *testing.T) {
	repo := &MockVerificationCodes{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()

	repo.On("Issue", mock.Anything, accountID, mock.Anything, now.Add(time.Minute), now).
		Run(func(args mock.Arguments) {
			assert.Len(t, args.String(2), 6)
		}).
		Return(&register.VerificationCode{AccountID: accountID}, nil).
		Once()

	manager := register.NewCodeManager(repo,
		register.WithCodeClock(func() time.Time { return now }),
		register.WithCodeTTL(time.Minute),
		register.WithCodeLength(6),
	)

	_, err := manager.Issue(context.Background(), accountID)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestVerificationCodeActiveWindow(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	code := &register.VerificationCode{
		Code:      "1234",
		ExpiresAt: issued.Add(register.DefaultCodeTTL),
	}

	assert.True(t, code.Active(issued))
	assert.True(t, code.Active(issued.Add(4*time.Minute+59*time.Second)))
	assert.True(t, code.Active(issued.Add(5*time.Minute)))
	assert.False(t, code.Active(issued.Add(5*time.Minute+time.Second)))

	code.Confirmed = true
	assert.False(t, code.Active(issued))
}
