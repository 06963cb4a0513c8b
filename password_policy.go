package register

import (
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultPasswordPolicy validates candidate passwords with ozzo rules.
// Swap in a custom PasswordPolicy for anything stricter.
type DefaultPasswordPolicy struct {
	MinLength int
	MaxLength int
}

// NewDefaultPasswordPolicy returns the stock length-bounded policy
func NewDefaultPasswordPolicy() *DefaultPasswordPolicy {
	return &DefaultPasswordPolicy{
		MinLength: 8,
		MaxLength: 100,
	}
}

// Check implements PasswordPolicy
func (p *DefaultPasswordPolicy) Check(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(p.MinLength, p.MaxLength),
	)
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "password does not meet policy").
		WithTextCode(TextCodeValidationFailure).
		WithCode(goerrors.CodeBadRequest)
}

var _ PasswordPolicy = (*DefaultPasswordPolicy)(nil)
