package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/redmonkez12/credentials-api/internal/account"
)

// TokenService issues and verifies identity tokens.
// PasetoService (PASETO v4.local) is the implementation.
type TokenService interface {
	CreateToken(claims Claims) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// PasswordHasher produces and checks password digests.
// Verify reports a mismatch as false; its error means the check never ran.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// AccountRepository is the credential store as seen by the auth flows.
// Create and CreateAttendant return account.ErrDuplicateEmail on a taken email;
// lookups return account.ErrNotFound when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, acc *account.Account) error
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	CreateAttendant(ctx context.Context, att *account.Attendant) error
	GetAttendantByEmail(ctx context.Context, email string) (*account.Attendant, error)
	FindAttendantProfile(ctx context.Context, accountID uuid.UUID, email string) (*account.Attendant, error)
}

// Notifier sends transactional email. Calls are made off the request path.
type Notifier interface {
	SendWelcomeEmail(ctx context.Context, toEmail, name string) error
}

// ProfileCache stores resolved principals. Implementations must never be
// handed a digest; Principal projections are already stripped.
type ProfileCache interface {
	Get(ctx context.Context, claims Claims) (*Principal, bool, error)
	Set(ctx context.Context, claims Claims, principal *Principal) error
}

// Recorder receives flow outcomes for metrics
type Recorder interface {
	Registration(outcome string)
	Login(role Role, outcome string)
	Resolution(role Role, outcome string)
	Notification(outcome string)
}
