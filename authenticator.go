package register

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// LoginResult is the outcome of a successful credential login.
type LoginResult struct {
	Account  *Account
	Tokens   *TokenPair
	FullName string
	Status   AuthStatus
}

// Auther orchestrates login, refresh and logout over the repositories
// and the token service.
type Auther struct {
	repo         RepositoryManager
	tokenService TokenService
	hasher       PasswordHasher
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager, tokenService TokenService) *Auther {
	return &Auther{
		repo:         repo,
		tokenService: tokenService,
		hasher:       NewPasswordHasher(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordHasher overrides the credential store implementation.
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// TokenService returns the TokenService instance used by this Auther
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login resolves a raw identifier (email or username) to an account and
// verifies its credentials. An unknown identifier and a wrong password
// fail identically with ErrInvalidCredentials so callers cannot probe for
// registered accounts. Accounts before DONE never reach the credential
// comparison.
func (s *Auther) Login(ctx context.Context, userInput, password string) (*LoginResult, error) {
	identifier, err := ClassifyIdentifier(userInput)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetByLoginIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"identifier": identifier.Value,
				"reason":     "account not found",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve login identifier")
	}

	account.EnsureStatus()
	if !account.Status.CanLogin() {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromAccount(account), account.ID.String(), map[string]any{
			"identifier": identifier.Value,
			"status":     account.Status,
			"reason":     "registration incomplete",
		})
		return nil, ErrIncompleteRegistration.WithMetadata(map[string]any{
			"status": account.Status,
		})
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromAccount(account), account.ID.String(), map[string]any{
			"identifier": identifier.Value,
			"reason":     "password mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokenService.IssuePair(accountIdentity{account})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token pair")
	}

	if err := s.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		s.logger.Warn("failed to track successful login for %s: %v", account.ID, err)
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromAccount(account), account.ID.String(), map[string]any{
		"identifier": identifier.Value,
	})

	return &LoginResult{
		Account:  account,
		Tokens:   pair,
		FullName: account.FullName(),
		Status:   account.Status,
	}, nil
}

// Refresh exchanges a refresh token for a new access token and records
// the account's last login as an observable side effect.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.tokenService.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	claims, err := s.tokenService.Validate(pair.AccessToken)
	if err != nil {
		return nil, err
	}

	if id, parseErr := uuid.Parse(claims.UserID()); parseErr == nil {
		if err := s.repo.Accounts().TrackSuccessfulLogin(ctx, &Account{ID: id}); err != nil {
			s.logger.Warn("failed to track login on refresh for %s: %v", id, err)
		}
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, ActorRef{ID: claims.UserID(), Type: "account"}, claims.UserID(), nil)

	return pair, nil
}

// Logout revokes the presented refresh token. An already revoked,
// expired, or malformed token fails with the corresponding token error.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokenService.Revoke(ctx, refreshToken); err != nil {
		return err
	}

	if claims, err := s.tokenService.Validate(refreshToken); err == nil {
		s.emitAuthEvent(ctx, ActivityEventTokenRevoked, ActorRef{ID: claims.UserID(), Type: "account"}, claims.UserID(), nil)
	}

	return nil
}

// SessionFromToken validates an access token and returns its session view.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

// AccountFromSession resolves the session's account record.
func (s *Auther) AccountFromSession(ctx context.Context, session Session) (*Account, error) {
	id, err := session.GetUserUUID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	account, err := s.repo.Accounts().GetByID(ctx, id.String())
	if err != nil {
		s.logger.Error("AccountFromSession lookup failed: %v", err)
		return nil, err
	}

	return account, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromAccount(account *Account) ActorRef {
	if account == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   account.ID.String(),
		Type: "account",
	}
}
