package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/credentials-api/internal/database"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

const passwordHashColumn = "password_hash"

// Repository is the credential store. The unique indexes on email are the
// source of truth for duplicate detection.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account, failing with ErrDuplicateEmail if the email is taken
func (r *Repository) Create(ctx context.Context, acc *Account) error {
	now := time.Now().UTC()
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	acc.CreatedAt = now
	acc.UpdatedAt = now

	dbAccount := &database.Account{
		ID:           acc.ID,
		Name:         acc.Name,
		Email:        acc.Email,
		Phone:        acc.Phone,
		PasswordHash: acc.PasswordHash,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}

	if _, err := r.db.NewInsert().Model(dbAccount).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByEmail retrieves an account, digest included, by exact email match
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// GetProfileByID retrieves an account without its password digest
func (r *Repository) GetProfileByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		ExcludeColumn(passwordHashColumn).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// CountAccounts returns the number of stored accounts
func (r *Repository) CountAccounts(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().Model((*database.Account)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// CreateAttendant inserts an attendant linked to an existing account.
// Returns ErrDuplicateEmail if the attendant email is taken and ErrNotFound
// if the owning account does not exist.
func (r *Repository) CreateAttendant(ctx context.Context, att *Attendant) error {
	now := time.Now().UTC()
	if att.ID == uuid.Nil {
		att.ID = uuid.New()
	}
	att.CreatedAt = now
	att.UpdatedAt = now

	dbAttendant := &database.Attendant{
		ID:           att.ID,
		AccountID:    att.AccountID,
		Name:         att.Name,
		Email:        att.Email,
		Phone:        att.Phone,
		PasswordHash: att.PasswordHash,
		CreatedAt:    att.CreatedAt,
		UpdatedAt:    att.UpdatedAt,
	}

	if _, err := r.db.NewInsert().Model(dbAttendant).Exec(ctx); err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicateEmail
		case isForeignKeyViolation(err):
			return ErrNotFound
		}
		return fmt.Errorf("failed to create attendant: %w", err)
	}

	return nil
}

// GetAttendantByEmail retrieves an attendant, digest included, by its own email
func (r *Repository) GetAttendantByEmail(ctx context.Context, email string) (*Attendant, error) {
	dbAttendant := new(database.Attendant)
	err := r.db.NewSelect().
		Model(dbAttendant).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attendant by email: %w", err)
	}

	return mapDBAttendantToModel(dbAttendant), nil
}

// FindAttendantProfile resolves an attendant by (account id, attendant email).
// Both must match. The digest is never selected.
func (r *Repository) FindAttendantProfile(ctx context.Context, accountID uuid.UUID, email string) (*Attendant, error) {
	dbAttendant := new(database.Attendant)
	err := r.db.NewSelect().
		Model(dbAttendant).
		ExcludeColumn(passwordHashColumn).
		Where("account_id = ?", accountID).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find attendant: %w", err)
	}

	return mapDBAttendantToModel(dbAttendant), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite reports constraint failures only through the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// mapDBAccountToModel converts database model to domain model
func mapDBAccountToModel(dba *database.Account) *Account {
	return &Account{
		ID:           dba.ID,
		Name:         dba.Name,
		Email:        dba.Email,
		Phone:        dba.Phone,
		PasswordHash: dba.PasswordHash,
		CreatedAt:    dba.CreatedAt,
		UpdatedAt:    dba.UpdatedAt,
	}
}

// mapDBAttendantToModel converts database model to domain model
func mapDBAttendantToModel(dba *database.Attendant) *Attendant {
	return &Attendant{
		ID:           dba.ID,
		AccountID:    dba.AccountID,
		Name:         dba.Name,
		Email:        dba.Email,
		Phone:        dba.Phone,
		PasswordHash: dba.PasswordHash,
		CreatedAt:    dba.CreatedAt,
		UpdatedAt:    dba.UpdatedAt,
	}
}
