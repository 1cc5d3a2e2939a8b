package auth

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redmonkez12/credentials-api/internal/account"
)

// Principal is a resolved identity. Exactly one of Account or Attendant is
// set, except for an attendant token whose attendant no longer exists, where
// both are nil.
type Principal struct {
	Role      Role               `json:"role"`
	Account   *account.Account   `json:"account,omitempty"`
	Attendant *account.Attendant `json:"attendant,omitempty"`
}

// MarshalJSON renders the bare projection: the account, the attendant or null
func (p *Principal) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	if p.Role == RoleAttendant {
		return json.Marshal(p.Attendant)
	}
	return json.Marshal(p.Account)
}

// Resolve maps verified claims onto the profile they name.
// The role claim picks the branch; a missing attendant is not an error.
func (s *Service) Resolve(ctx context.Context, claims *TokenClaims) (*Principal, error) {
	p, err := s.resolve(ctx, claims)
	switch {
	case err == nil && p.Account == nil && p.Attendant == nil:
		s.recorder.Resolution(claims.Role, OutcomeNotFound)
	default:
		s.recorder.Resolution(claims.Role, outcomeOf(err))
	}
	return p, err
}

func (s *Service) resolve(ctx context.Context, claims *TokenClaims) (*Principal, error) {
	if p, ok := s.cachedPrincipal(ctx, claims.Claims); ok {
		return p, nil
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	p := &Principal{Role: claims.Role}

	if claims.Role == RoleAttendant {
		att, err := s.accounts.FindAttendantProfile(storeCtx, claims.AccountID, claims.AttendantEmail)
		if errors.Is(err, account.ErrNotFound) {
			return p, nil
		}
		if err != nil {
			return nil, storageError(err, "resolve attendant")
		}
		att.PasswordHash = ""
		p.Attendant = att
	} else {
		acc, err := s.accounts.GetProfileByID(storeCtx, claims.AccountID)
		if err != nil {
			// a valid token for a deleted account is still a lookup miss, not a crash
			if errors.Is(err, account.ErrNotFound) {
				return p, nil
			}
			return nil, storageError(err, "resolve account")
		}
		acc.PasswordHash = ""
		p.Account = acc
	}

	s.cachePrincipal(ctx, claims.Claims, p)
	return p, nil
}

func (s *Service) cachedPrincipal(ctx context.Context, claims Claims) (*Principal, bool) {
	if s.cache == nil {
		return nil, false
	}
	p, ok, err := s.cache.Get(ctx, claims)
	if err != nil {
		s.logger.Warn("profile cache read failed", "error", err)
		return nil, false
	}
	return p, ok
}

func (s *Service) cachePrincipal(ctx context.Context, claims Claims, p *Principal) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, claims, p); err != nil {
		s.logger.Warn("profile cache write failed", "error", err)
	}
}
