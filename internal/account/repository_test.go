package account_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/credentials-api/internal/account"
	"github.com/redmonkez12/credentials-api/internal/database/dbtest"
)

func newRepo(t *testing.T) *account.Repository {
	return account.NewRepository(dbtest.NewSQLite(t))
}

func strPtr(s string) *string { return &s }

func TestRepository_CreateAndGetByEmail(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	acc := &account.Account{Name: "Amy", Email: "amy@x.com", Phone: strPtr("+15550100"), PasswordHash: "digest"}
	require.NoError(t, repo.Create(ctx, acc))
	assert.NotEqual(t, uuid.Nil, acc.ID)
	assert.False(t, acc.CreatedAt.IsZero())

	got, err := repo.GetByEmail(ctx, "amy@x.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, "Amy", got.Name)
	assert.Equal(t, "digest", got.PasswordHash)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+15550100", *got.Phone)
}

func TestRepository_GetByEmailIsExactMatch(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &account.Account{Name: "Amy", Email: "amy@x.com", PasswordHash: "d"}))

	_, err := repo.GetByEmail(ctx, "AMY@x.com")
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestRepository_CreateDuplicateEmail(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &account.Account{Name: "Amy", Email: "amy@x.com", PasswordHash: "d"}))

	err := repo.Create(ctx, &account.Account{Name: "Other", Email: "amy@x.com", PasswordHash: "d"})
	assert.ErrorIs(t, err, account.ErrDuplicateEmail)

	count, err := repo.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_ConcurrentCreateOnlyOneWins(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, &account.Account{Name: "Amy", Email: "race@x.com", PasswordHash: "d"})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				succeeded++
			case account.ErrDuplicateEmail:
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, dupes)
}

func TestRepository_GetProfileByIDExcludesDigest(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	acc := &account.Account{Name: "Amy", Email: "amy@x.com", PasswordHash: "digest"}
	require.NoError(t, repo.Create(ctx, acc))

	profile, err := repo.GetProfileByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "amy@x.com", profile.Email)
	assert.Empty(t, profile.PasswordHash)

	_, err = repo.GetProfileByID(ctx, uuid.New())
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestRepository_Attendants(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	owner := &account.Account{Name: "Amy", Email: "amy@x.com", PasswordHash: "d"}
	require.NoError(t, repo.Create(ctx, owner))

	att := &account.Attendant{AccountID: owner.ID, Name: "Bob", Email: "bob@x.com", PasswordHash: "att-digest"}
	require.NoError(t, repo.CreateAttendant(ctx, att))

	t.Run("lookup by email includes digest", func(t *testing.T) {
		got, err := repo.GetAttendantByEmail(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, att.ID, got.ID)
		assert.Equal(t, owner.ID, got.AccountID)
		assert.Equal(t, "att-digest", got.PasswordHash)
	})

	t.Run("profile requires both keys and excludes digest", func(t *testing.T) {
		got, err := repo.FindAttendantProfile(ctx, owner.ID, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, "Bob", got.Name)
		assert.Empty(t, got.PasswordHash)

		_, err = repo.FindAttendantProfile(ctx, uuid.New(), "bob@x.com")
		assert.ErrorIs(t, err, account.ErrNotFound)

		_, err = repo.FindAttendantProfile(ctx, owner.ID, "amy@x.com")
		assert.ErrorIs(t, err, account.ErrNotFound)
	})

	t.Run("duplicate attendant email", func(t *testing.T) {
		err := repo.CreateAttendant(ctx, &account.Attendant{AccountID: owner.ID, Name: "Bob 2", Email: "bob@x.com", PasswordHash: "d"})
		assert.ErrorIs(t, err, account.ErrDuplicateEmail)
	})

	t.Run("unknown owner", func(t *testing.T) {
		err := repo.CreateAttendant(ctx, &account.Attendant{AccountID: uuid.New(), Name: "Eve", Email: "eve@x.com", PasswordHash: "d"})
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}
