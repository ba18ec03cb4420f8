package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/rosegold-gallery/storefront/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenIssuer is the slice of the token service login needs.
type TokenIssuer interface {
	Issue(subjectID string, role auth.Role, ttl time.Duration) (string, error)
}

type Service interface {
	Register(ctx context.Context, u *User, password string) (*User, error)
	Login(ctx context.Context, email, password string) (*User, string, error)
}

type service struct {
	repo     Repository
	tokens   TokenIssuer
	tokenTTL time.Duration
}

func NewService(repo Repository, tokens TokenIssuer, tokenTTL time.Duration) Service {
	return &service{repo: repo, tokens: tokens, tokenTTL: tokenTTL}
}

// Register stores a new account with role "user". Admin accounts are seeded
// out of band, never through this path.
func (s *service) Register(ctx context.Context, u *User, password string) (*User, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Role = auth.RoleUser

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate user id: %w", err)
	}
	u.ID = id

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user")
		return nil, fmt.Errorf("service: failed to create user: %w", err)
	}

	log.Info().Stringer("user_id", u.ID).Msg("service: user registered")
	return u, nil
}

// Login verifies credentials and issues a signed token. The role in the
// token comes from the stored user row, never from the request.
func (s *service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to fetch user for login")
		return nil, "", fmt.Errorf("service: failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: password mismatch")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID.String(), u.Role, s.tokenTTL)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to issue token")
		return nil, "", fmt.Errorf("service: failed to issue token: %w", err)
	}

	return u, token, nil
}
