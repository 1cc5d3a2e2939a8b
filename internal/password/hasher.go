// Package password produces and verifies salted password digests.
//
// New digests use the configured algorithm and are encoded in PHC form
// ($argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>) or in the standard bcrypt
// form ($2a$10$...). Verification understands both, so digests written by the
// previous bcrypt based deployment keep working.
package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// CodeHashFailed tags errors returned by Hash and Verify
const CodeHashFailed = "HASH_ERROR"

// bcryptMaxInput is the number of password bytes bcrypt reads
const bcryptMaxInput = 72

// Hasher hashes and verifies passwords.
// Concurrent computations are bounded because argon2id is memory hard.
type Hasher struct {
	cfg Config
	sem *semaphore.Weighted
}

func NewHasher(cfg Config) *Hasher {
	return &Hasher{
		cfg: cfg,
		sem: semaphore.NewWeighted(cfg.maxConcurrent()),
	}
}

// Hash returns a fresh salted digest of plaintext.
// It only fails if ctx is done before a slot frees up, the system RNG fails
// or the configured cost is rejected by the primitive.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (digest string, err error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code(CodeHashFailed).Wrapf(err, "waiting for hash slot")
	}
	defer h.sem.Release(1)

	// argon2.IDKey panics on out of range parameters
	defer func() {
		if r := recover(); r != nil {
			digest, err = "", oops.Code(CodeHashFailed).With("algorithm", h.cfg.Algorithm).Errorf("hash: %v", r)
		}
	}()

	if h.cfg.Algorithm == AlgorithmBcrypt {
		out, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.cfg.BcryptCost)
		if err != nil {
			return "", oops.Code(CodeHashFailed).With("algorithm", AlgorithmBcrypt).Wrap(err)
		}
		return string(out), nil
	}

	return h.hashArgon2id(plaintext)
}

// Verify reports whether plaintext matches digest.
// Malformed digests and any failure of the underlying primitive yield false.
// The error is only set when ctx is done before a slot frees up.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (ok bool, err error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code(CodeHashFailed).Wrapf(err, "waiting for hash slot")
	}
	defer h.sem.Release(1)

	defer func() {
		if recover() != nil {
			ok, err = false, nil
		}
	}()

	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return h.verifyArgon2id(plaintext, digest), nil
	case isBcrypt(digest):
		return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(plaintext)) == nil, nil
	default:
		return false, nil
	}
}

func (h *Hasher) hashArgon2id(plaintext string) (string, error) {
	p := h.cfg.Argon2

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(CodeHashFailed).With("algorithm", AlgorithmArgon2id).Wrapf(err, "salt")
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func (h *Hasher) verifyArgon2id(plaintext, digest string) bool {
	params, salt, expected, ok := decodeArgon2id(digest)
	if !ok {
		return false
	}

	// refuse digests whose cost is far above ours; they would let a stored
	// value dictate arbitrary memory use
	limits := h.cfg.Argon2
	if params.MemoryKiB > limits.MemoryKiB*2 || params.Iterations > limits.Iterations*2 {
		return false
	}

	key := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}

func decodeArgon2id(digest string) (Argon2idParams, []byte, []byte, bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, false
	}

	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2idParams{}, nil, nil, false
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return Argon2idParams{}, nil, nil, false
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, false
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return Argon2idParams{}, nil, nil, false
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2idParams{}, nil, nil, false
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, true
}

// bcryptInput cuts plaintext to the bytes bcrypt reads, as the previous
// deployment's bcrypt did, so long passwords hash and keep verifying.
func bcryptInput(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) > bcryptMaxInput {
		b = b[:bcryptMaxInput]
	}
	return b
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
