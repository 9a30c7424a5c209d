package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/authfront/authfront/internal/identity"
	"github.com/authfront/authfront/internal/notification"
)

const (
	// RegistrationComplete is the marker returned by a successful Register.
	RegistrationComplete = "complete"

	// TokenTypeBearer is the token_type reported with every access token.
	TokenTypeBearer = "bearer"

	dummyPassword = "authfront-timing-equalizer"
)

// Token is the result of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Service composes the credential store, hasher, and token service into the
// register, login, and verify flows.
type Service struct {
	store    identity.Store
	hasher   PasswordHasher
	tokens   *TokenService
	notifier notification.Notifier
	logger   *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService builds the auth orchestrator. A nil notifier discards events.
func NewService(store identity.Store, hasher PasswordHasher, tokens *TokenService, notifier notification.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, hasher: hasher, tokens: tokens, notifier: notifier, logger: logger}
}

// Register stores a new user with a hashed password and returns
// RegistrationComplete.
func (s *Service) Register(ctx context.Context, creds identity.Credentials) (string, error) {
	if creds.Username == "" || creds.Password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}

	err := s.store.WithinSession(ctx, func(repo identity.Repository) error {
		_, err := repo.FindByUsername(ctx, creds.Username)
		switch {
		case err == nil:
			return ErrDuplicateUser
		case !errors.Is(err, identity.ErrNotFound):
			return oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "lookup user").
				With("username", creds.Username).
				Wrap(err)
		}

		hash, err := s.hasher.Hash(creds.Password)
		if err != nil {
			if errors.Is(err, ErrEmptyPassword) || errors.Is(err, ErrPasswordTooLong) {
				return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			return oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}

		_, err = repo.Create(ctx, identity.User{
			Username:     creds.Username,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		})
		if errors.Is(err, identity.ErrUserExists) {
			return ErrDuplicateUser
		}
		if err != nil {
			return oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "create user").
				With("username", creds.Username).
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.notifier.Send(ctx, notification.Message{
		Kind:    notification.KindUserRegistered,
		Subject: creds.Username,
	}); err != nil {
		s.logger.WarnContext(ctx, "registration notification failed",
			slog.String("username", creds.Username),
			slog.Any("error", err),
		)
	}

	return RegistrationComplete, nil
}

// Login checks the credentials and issues a bearer token for the username.
func (s *Service) Login(ctx context.Context, creds identity.Credentials) (Token, error) {
	user, err := s.store.FindByUsername(ctx, creds.Username)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			return Token{}, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "lookup user").
				Wrap(err)
		}
		// Burn the same bcrypt work as a real check so timing does not
		// reveal whether the username exists.
		s.hasher.Verify(creds.Password, s.timingHash())
		return Token{}, ErrInvalidCredentials
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		return Token{}, ErrInvalidCredentials
	}

	access, _, err := s.tokens.Issue(user.Username, 0)
	if err != nil {
		return Token{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	return Token{
		AccessToken: access,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

// VerifyToken validates token and returns the username it was issued for.
func (s *Service) VerifyToken(_ context.Context, token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("timing hash unavailable", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
