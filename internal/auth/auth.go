// Package auth owns credential handling and session token issuance. The
// ledger core never sees tokens or passwords; it consumes only the
// resolved principal email.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/YanRho/alky-wallet/internal/core"
	"github.com/YanRho/alky-wallet/internal/log"
)

// Store is the persistence surface auth needs. *storage.Store satisfies it.
type Store interface {
	CreateUser(ctx context.Context, u core.User) error
	UserByEmail(ctx context.Context, email string) (core.User, error)
}

// Config carries token and hashing parameters.
type Config struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
}

// Service registers users, checks credentials and issues/verifies HS256
// session tokens carrying the normalized email as subject.
type Service struct {
	store  Store
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

func New(store Store, cfg Config, logger *log.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

// ValidationError is a user-facing registration input problem. It matches
// core.ErrInvalidInput under errors.Is so handlers can map it to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == core.ErrInvalidInput }

// Register validates the input, hashes the password and creates the user.
// Duplicate emails answer core.ErrEmailTaken regardless of whether the
// duplicate was caught by the pre-check or the unique constraint.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Message: "Name is required"}
	}
	if len(name) > 100 {
		return &ValidationError{Message: "Name must be at most 100 characters"}
	}
	normalized := core.NormalizeEmail(email)
	if _, err := mail.ParseAddress(normalized); err != nil {
		return &ValidationError{Message: "Invalid email address"}
	}
	if len(password) < 8 {
		return &ValidationError{Message: "Password must be at least 8 characters"}
	}

	if _, err := s.store.UserByEmail(ctx, normalized); err == nil {
		return core.ErrEmailTaken
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		ID:           uuid.NewString(),
		Email:        normalized,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return nil
}

// Login checks the credentials and returns a signed session token. Unknown
// emails and wrong passwords answer the same core.ErrUnauthenticated.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	normalized := core.NormalizeEmail(email)
	user, err := s.store.UserByEmail(ctx, normalized)
	if errors.Is(err, core.ErrUserNotFound) {
		return "", core.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", core.ErrUnauthenticated
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.Email,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.TokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return signed, nil
}

// VerifyToken checks the signature and expiry of a session token and
// returns the principal email it carries.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.cfg.Secret, nil
	})
	if err != nil || !token.Valid {
		return "", core.ErrUnauthenticated
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", core.ErrUnauthenticated
	}
	email, _ := claims["sub"].(string)
	if email == "" {
		return "", core.ErrUnauthenticated
	}
	return email, nil
}
