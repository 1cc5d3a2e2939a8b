package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/credentials-api/internal/account"
)

// RedisProfileCache keeps resolved principals in Redis for a short TTL
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

// cacheEntry is the stored form; Principal itself marshals to the bare projection
type cacheEntry struct {
	Role      Role               `json:"role"`
	Account   *account.Account   `json:"account,omitempty"`
	Attendant *account.Attendant `json:"attendant,omitempty"`
}

// getProfileKey generates the Redis key for the principal named by claims
func getProfileKey(claims Claims) string {
	if claims.Role == RoleAttendant {
		return fmt.Sprintf("profile:attendant:%s:%s", claims.AccountID, claims.AttendantEmail)
	}
	return fmt.Sprintf("profile:user:%s", claims.AccountID)
}

// Get returns the cached principal, if any
func (c *RedisProfileCache) Get(ctx context.Context, claims Claims) (*Principal, bool, error) {
	data, err := c.client.Get(ctx, getProfileKey(claims)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get profile: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode profile: %w", err)
	}
	if entry.Role != claims.Role || (entry.Account == nil && entry.Attendant == nil) {
		return nil, false, nil
	}

	return &Principal{Role: entry.Role, Account: entry.Account, Attendant: entry.Attendant}, true, nil
}

// Set stores a resolved principal. Empty principals are not stored.
func (c *RedisProfileCache) Set(ctx context.Context, claims Claims, p *Principal) error {
	if p == nil || (p.Account == nil && p.Attendant == nil) {
		return nil
	}

	entry := cacheEntry{Role: p.Role, Account: p.Account, Attendant: p.Attendant}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	if err := c.client.Set(ctx, getProfileKey(claims), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}
