package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the authenticated subject of a request, derived from a
// verified token. It is never populated from request body fields.
type Identity struct {
	ID        string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies signed identity tokens. It is stateless:
// verification is a pure function of the token and the shared secret, so
// concurrent use needs no synchronization.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Issue signs a token binding subjectID and role for ttl. A zero ttl
// produces a token that is already expired the moment it is issued.
func (s *TokenService) Issue(subjectID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}

	return token, nil
}

// Verify checks the token's signature and expiry against the local clock.
// A bad signature and a structurally invalid payload both come back as
// ErrTokenMalformed; a valid token past its expiry comes back as
// ErrTokenExpired. Callers must treat both as "not authenticated".
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenMalformed
	}
	if !token.Valid {
		return Identity{}, ErrTokenMalformed
	}

	role := Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return Identity{}, ErrTokenMalformed
	}

	identity := Identity{
		ID:   claims.Subject,
		Role: role,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return identity, nil
}
