package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registrant. The digest never leaves the process through JSON.
type Account struct {
	ID           uuid.UUID `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"date"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Attendant is a secondary principal that belongs to an account.
type Attendant struct {
	ID           uuid.UUID `json:"_id"`
	AccountID    uuid.UUID `json:"user"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"date"`
	UpdatedAt    time.Time `json:"updated_at"`
}
