package user

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/rosegold-gallery/storefront/internal/auth"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	City         string    `json:"city"`
	Street       string    `json:"street"`
	Role         auth.Role `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
