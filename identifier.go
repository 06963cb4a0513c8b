package register

import (
	"net/mail"
	"regexp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// IdentifierKind tags a classified login input
type IdentifierKind string

const (
	// IdentifierEmail means the input parsed as an email address
	IdentifierEmail IdentifierKind = "email"
	// IdentifierUsername means the input looks like a username
	IdentifierUsername IdentifierKind = "username"
)

// LoginIdentifier is the tagged result of classifying a raw login input.
// Pure value, consumed locally; no state shared across branches.
type LoginIdentifier struct {
	Kind  IdentifierKind
	Value string
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{3,64}$`)

// ClassifyIdentifier decides whether a raw login input is an email or a
// username. Email inputs are lowercased to match storage normalization.
func ClassifyIdentifier(input string) (LoginIdentifier, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return LoginIdentifier{}, goerrors.New("login identifier is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	if isEmail(trimmed) {
		return LoginIdentifier{
			Kind:  IdentifierEmail,
			Value: strings.ToLower(trimmed),
		}, nil
	}

	if usernameRe.MatchString(trimmed) {
		return LoginIdentifier{
			Kind:  IdentifierUsername,
			Value: trimmed,
		}, nil
	}

	return LoginIdentifier{}, goerrors.New("login identifier must be an email or username", goerrors.CategoryBadInput).
		WithTextCode(TextCodeValidationFailure).
		WithCode(goerrors.CodeBadRequest)
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
// Emails are unique and lowercase at rest.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isEmail(input string) bool {
	if strings.ContainsAny(input, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(input)
	return err == nil && addr.Address == input
}
