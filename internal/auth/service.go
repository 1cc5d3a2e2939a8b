package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/redmonkez12/credentials-api/internal/account"
	"github.com/redmonkez12/credentials-api/internal/logging"
)

// Outcome labels passed to the Recorder
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid_credentials"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Timeouts bounds calls to external collaborators
type Timeouts struct {
	Store  time.Duration
	Notify time.Duration
}

// RegisterInput is an already validated registration request
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
}

// AttendantInput is an already validated attendant creation request
type AttendantInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
}

// AuthToken is what registration and authentication hand back to the caller
type AuthToken struct {
	Token string `json:"token"`
}

// Service handles authentication business logic
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   TokenService
	notifier Notifier
	cache    ProfileCache
	recorder Recorder
	logger   *logging.Logger
	timeouts Timeouts

	notifications sync.WaitGroup
}

// NewService wires the flows. cache and recorder may be nil.
func NewService(
	accounts AccountRepository,
	hasher PasswordHasher,
	tokens TokenService,
	notifier Notifier,
	cache ProfileCache,
	recorder Recorder,
	logger *logging.Logger,
	timeouts Timeouts,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		cache:    cache,
		recorder: recorder,
		logger:   logger,
		timeouts: timeouts,
	}
}

// Register creates an account and returns a token for it.
// Fails with ErrDuplicateAccount if the email is taken.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthToken, error) {
	token, err := s.register(ctx, in)
	s.recorder.Registration(outcomeOf(err))
	return token, err
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*AuthToken, error) {
	// Fast path only: the unique index decides, see Create below
	_, err := s.getAccountByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrDuplicateAccount
	case !errors.Is(err, account.ErrNotFound):
		return nil, storageError(err, "lookup account")
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, oops.Code(CodeHash).Wrapf(err, "hash password")
	}

	acc := &account.Account{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: digest,
	}

	storeCtx, cancel := s.storeContext(ctx)
	err = s.accounts.Create(storeCtx, acc)
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return nil, ErrDuplicateAccount
		}
		return nil, storageError(err, "create account")
	}

	s.notifyWelcome(acc.Email, acc.Name)

	return s.issue(Claims{AccountID: acc.ID, Email: acc.Email, Role: RoleUser})
}

// Login authenticates an account by email and password.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthToken, error) {
	token, err := s.login(ctx, email, password)
	s.recorder.Login(RoleUser, outcomeOf(err))
	return token, err
}

func (s *Service) login(ctx context.Context, email, password string) (*AuthToken, error) {
	acc, err := s.getAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageError(err, "lookup account")
	}

	if err := s.verify(ctx, password, acc.PasswordHash); err != nil {
		return nil, err
	}

	return s.issue(Claims{AccountID: acc.ID, Email: acc.Email, Role: RoleUser})
}

// LoginAttendant authenticates an attendant by its own email and password.
// The token identifies the owning account and carries the attendant email.
func (s *Service) LoginAttendant(ctx context.Context, email, password string) (*AuthToken, error) {
	token, err := s.loginAttendant(ctx, email, password)
	s.recorder.Login(RoleAttendant, outcomeOf(err))
	return token, err
}

func (s *Service) loginAttendant(ctx context.Context, email, password string) (*AuthToken, error) {
	storeCtx, cancel := s.storeContext(ctx)
	att, err := s.accounts.GetAttendantByEmail(storeCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageError(err, "lookup attendant")
	}

	if err := s.verify(ctx, password, att.PasswordHash); err != nil {
		return nil, err
	}

	storeCtx, cancel = s.storeContext(ctx)
	owner, err := s.accounts.GetProfileByID(storeCtx, att.AccountID)
	cancel()
	if err != nil {
		// an attendant whose account vanished cannot sign in
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageError(err, "lookup attendant account")
	}

	return s.issue(Claims{
		AccountID:      owner.ID,
		Email:          owner.Email,
		Role:           RoleAttendant,
		AttendantEmail: att.Email,
	})
}

// AddAttendant creates an attendant under the caller's own account.
// Only user principals may do this.
func (s *Service) AddAttendant(ctx context.Context, caller Claims, in AttendantInput) (*account.Attendant, error) {
	if caller.Role != RoleUser {
		return nil, ErrForbiddenRole
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, oops.Code(CodeHash).Wrapf(err, "hash password")
	}

	att := &account.Attendant{
		AccountID:    caller.AccountID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: digest,
	}

	storeCtx, cancel := s.storeContext(ctx)
	err = s.accounts.CreateAttendant(storeCtx, att)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, account.ErrDuplicateEmail):
			return nil, ErrDuplicateAttendant
		case errors.Is(err, account.ErrNotFound):
			// token for an account that no longer exists
			return nil, ErrForbiddenRole
		}
		return nil, storageError(err, "create attendant")
	}

	att.PasswordHash = ""
	return att, nil
}

// WaitForNotifications blocks until in-flight notifications finish or ctx is done
func (s *Service) WaitForNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyWelcome fires the welcome mail and returns immediately.
// Failures are logged here and never reach the registration result.
func (s *Service) notifyWelcome(email, name string) {
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		// detached from the request so a finished response does not cancel it
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout())
		defer cancel()

		if err := s.notifier.SendWelcomeEmail(ctx, email, name); err != nil {
			s.recorder.Notification(OutcomeError)
			s.logger.Warn("failed to send welcome email", "email", email, "error", err)
			return
		}
		s.recorder.Notification(OutcomeSuccess)
	}()
}

// verify returns ErrInvalidCredentials on a mismatch and a hash error if the
// check could not run
func (s *Service) verify(ctx context.Context, password, digest string) error {
	ok, err := s.hasher.Verify(ctx, password, digest)
	if err != nil {
		return oops.Code(CodeHash).Wrapf(err, "verify password")
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) issue(claims Claims) (*AuthToken, error) {
	token, err := s.tokens.CreateToken(claims)
	if err != nil {
		return nil, tokenError(err)
	}
	return &AuthToken{Token: token}, nil
}

func (s *Service) getAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.accounts.GetByEmail(storeCtx, email)
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeouts.Store <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeouts.Store)
}

func (s *Service) notifyTimeout() time.Duration {
	if s.timeouts.Notify <= 0 {
		return 30 * time.Second
	}
	return s.timeouts.Notify
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrDuplicateAccount), errors.Is(err, ErrDuplicateAttendant):
		return OutcomeDuplicate
	case errors.Is(err, ErrInvalidCredentials):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

type nopRecorder struct{}

func (nopRecorder) Registration(string)     {}
func (nopRecorder) Login(Role, string)      {}
func (nopRecorder) Resolution(Role, string) {}
func (nopRecorder) Notification(string)     {}
