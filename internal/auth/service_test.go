package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/credentials-api/internal/password"
)

func TestService_Register(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAmy(t)

	claims, err := env.tokens.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, claims.Role)
	assert.Equal(t, "amy@x.com", claims.Email)

	stored, err := env.accounts.GetByEmail(context.Background(), "amy@x.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.AccountID)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	ok, err := testHasher().Verify(context.Background(), "secret1", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, env.accounts.count())
	assert.Equal(t, 1, env.recorder.get("registration:success"))
	assert.Equal(t, 1, env.recorder.get("notification:success"))
	env.notifier.AssertExpectations(t)
}

func TestService_RegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.registerAmy(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{Name: "Amy 2", Email: "amy@x.com", Password: "other12"})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
	assert.Equal(t, 1, env.accounts.count())
	assert.Equal(t, 1, env.recorder.get("registration:duplicate"))

	// only the first registration sends mail
	env.drain(t)
	env.notifier.AssertNumberOfCalls(t, "SendWelcomeEmail", 1)
}

func TestService_RegisterConcurrentSameEmail(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.On("SendWelcomeEmail", mock.Anything, "race@x.com", mock.Anything).Return(nil)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		dup     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Register(context.Background(), RegisterInput{Name: "Race", Email: "race@x.com", Password: "secret1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrDuplicateAccount):
				dup++
			}
		}()
	}
	wg.Wait()
	env.drain(t)

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, dup)
	assert.Equal(t, 1, env.accounts.count())
}

func TestService_RegisterStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.fail(errors.New("connection refused"))

	token, err := env.svc.Register(context.Background(), RegisterInput{Name: "Amy", Email: "amy@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.Nil(t, token)
	assert.True(t, IsStorageError(err))
	assert.True(t, IsInternalError(err))
	assert.Equal(t, 1, env.recorder.get("registration:error"))

	env.drain(t)
	env.notifier.AssertNotCalled(t, "SendWelcomeEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RegisterNotifierFailureDoesNotFail(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t)
	env.notifier.On("SendWelcomeEmail", mock.Anything, "amy@x.com", "Amy").Return(errors.New("smtp down")).Once()

	token, err := env.svc.Register(context.Background(), RegisterInput{Name: "Amy", Email: "amy@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)

	env.drain(t)
	assert.Equal(t, 1, env.recorder.get("notification:error"))
	assert.Equal(t, 1, env.recorder.get("registration:success"))
}

func TestService_RegisterDoesNotWaitForNotifier(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t)
	release := make(chan struct{})
	env.notifier.On("SendWelcomeEmail", mock.Anything, "amy@x.com", "Amy").
		Run(func(mock.Arguments) { <-release }).
		Return(nil).
		Once()

	done := make(chan error, 1)
	go func() {
		_, err := env.svc.Register(context.Background(), RegisterInput{Name: "Amy", Email: "amy@x.com", Password: "secret1"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("registration blocked on the notifier")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, env.svc.WaitForNotifications(ctx), context.DeadlineExceeded)

	close(release)
	env.drain(t)
}

func TestService_RegisterLongPasswordWithBcrypt(t *testing.T) {
	env := newTestEnv(t)
	cfg := password.DefaultConfig()
	cfg.Algorithm = password.AlgorithmBcrypt
	cfg.BcryptCost = bcrypt.MinCost
	env.svc.hasher = password.NewHasher(cfg)
	env.notifier.On("SendWelcomeEmail", mock.Anything, "amy@x.com", "Amy").Return(nil).Once()

	long := strings.Repeat("p", 80)
	_, err := env.svc.Register(context.Background(), RegisterInput{Name: "Amy", Email: "amy@x.com", Password: long})
	require.NoError(t, err)

	_, err = env.svc.Login(context.Background(), "amy@x.com", long)
	assert.NoError(t, err)
	env.drain(t)
}

func TestService_Login(t *testing.T) {
	env := newTestEnv(t)
	env.registerAmy(t)

	token, err := env.svc.Login(context.Background(), "amy@x.com", "secret1")
	require.NoError(t, err)

	claims, err := env.tokens.VerifyToken(token.Token)
	require.NoError(t, err)
	stored, err := env.accounts.GetByEmail(context.Background(), "amy@x.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.AccountID)
	assert.Equal(t, "amy@x.com", claims.Email)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestService_LoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t)
	env.registerAmy(t)

	_, unknown := env.svc.Login(context.Background(), "nobody@x.com", "secret1")
	_, wrong := env.svc.Login(context.Background(), "amy@x.com", "wrong")
	_, caseDiffers := env.svc.Login(context.Background(), "AMY@x.com", "secret1")

	require.Error(t, unknown)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.ErrorIs(t, caseDiffers, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())
	assert.Equal(t, 3, env.recorder.get("login:user:invalid_credentials"))
}

func TestService_LoginStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.fail(context.DeadlineExceeded)

	_, err := env.svc.Login(context.Background(), "amy@x.com", "secret1")
	assert.True(t, IsStorageError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_LoginVerifyUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.registerAmy(t)
	env.svc.hasher = busyHasher{Hasher: testHasher()}

	_, err := env.svc.Login(context.Background(), "amy@x.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, IsInternalError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, env.recorder.get("login:user:error"))

	_, err = env.svc.LoginAttendant(context.Background(), "bob@x.com", "secret2")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown attendants never reach the hasher")
}

func TestService_Attendants(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.registerAmy(t)
	owner, err := env.tokens.VerifyToken(userToken)
	require.NoError(t, err)

	att, err := env.svc.AddAttendant(context.Background(), owner.Claims, AttendantInput{
		Name: "Bob", Email: "bob@x.com", Password: "secret2",
	})
	require.NoError(t, err)
	assert.Equal(t, owner.AccountID, att.AccountID)
	assert.Empty(t, att.PasswordHash)

	t.Run("duplicate attendant", func(t *testing.T) {
		_, err := env.svc.AddAttendant(context.Background(), owner.Claims, AttendantInput{
			Name: "Bob again", Email: "bob@x.com", Password: "secret2",
		})
		assert.ErrorIs(t, err, ErrDuplicateAttendant)
	})

	t.Run("attendant login", func(t *testing.T) {
		token, err := env.svc.LoginAttendant(context.Background(), "bob@x.com", "secret2")
		require.NoError(t, err)

		claims, err := env.tokens.VerifyToken(token.Token)
		require.NoError(t, err)
		assert.Equal(t, RoleAttendant, claims.Role)
		assert.Equal(t, owner.AccountID, claims.AccountID)
		assert.Equal(t, "amy@x.com", claims.Email)
		assert.Equal(t, "bob@x.com", claims.AttendantEmail)

		_, err = env.svc.AddAttendant(context.Background(), claims.Claims, AttendantInput{
			Name: "Eve", Email: "eve@x.com", Password: "secret3",
		})
		assert.ErrorIs(t, err, ErrForbiddenRole)
	})

	t.Run("attendant login failures are uniform", func(t *testing.T) {
		_, unknown := env.svc.LoginAttendant(context.Background(), "nobody@x.com", "secret2")
		_, wrong := env.svc.LoginAttendant(context.Background(), "bob@x.com", "nope")
		_, ownerEmail := env.svc.LoginAttendant(context.Background(), "amy@x.com", "secret1")

		assert.ErrorIs(t, unknown, ErrInvalidCredentials)
		assert.ErrorIs(t, wrong, ErrInvalidCredentials)
		assert.ErrorIs(t, ownerEmail, ErrInvalidCredentials)
	})
}

func TestService_TokenFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	env.svc.tokens = failingTokens{}
	env.notifier.On("SendWelcomeEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := env.svc.Register(context.Background(), RegisterInput{Name: "Amy", Email: "amy@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, IsInternalError(err))
	assert.False(t, IsStorageError(err))
	env.drain(t)
}

// busyHasher never gets a hashing slot for Verify
type busyHasher struct {
	*password.Hasher
}

func (busyHasher) Verify(context.Context, string, string) (bool, error) {
	return false, context.DeadlineExceeded
}

type failingTokens struct{}

func (failingTokens) CreateToken(Claims) (string, error) {
	return "", errors.New("signing key unavailable")
}

func (failingTokens) VerifyToken(string) (*TokenClaims, error) {
	return nil, ErrInvalidToken
}
