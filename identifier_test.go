package register_test

import (
	"testing"

	"github.com/goliatone/go-register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected register.LoginIdentifier
		wantErr  bool
	}{
		{
			name:     "email",
			input:    "tester@example.com",
			expected: register.LoginIdentifier{Kind: register.IdentifierEmail, Value: "tester@example.com"},
		},
		{
			name:     "email is lowercased",
			input:    "Tester@Example.COM",
			expected: register.LoginIdentifier{Kind: register.IdentifierEmail, Value: "tester@example.com"},
		},
		{
			name:     "email with surrounding whitespace",
			input:    "  tester@example.com  ",
			expected: register.LoginIdentifier{Kind: register.IdentifierEmail, Value: "tester@example.com"},
		},
		{
			name:     "username",
			input:    "some_user.99",
			expected: register.LoginIdentifier{Kind: register.IdentifierUsername, Value: "some_user.99"},
		},
		{
			name:     "username keeps case",
			input:    "SomeUser",
			expected: register.LoginIdentifier{Kind: register.IdentifierUsername, Value: "SomeUser"},
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "too short for a username",
			input:   "ab",
			wantErr: true,
		},
		{
			name:    "illegal characters",
			input:   "not a user!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := register.ClassifyIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, register.HasTextCode(err, register.TextCodeValidationFailure))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "tester@example.com", register.NormalizeEmail(" Tester@Example.COM "))
	assert.Equal(t, "", register.NormalizeEmail("   "))
}
