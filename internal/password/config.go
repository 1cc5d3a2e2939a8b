package password

import (
	"runtime"
)

// Algorithm names accepted by Config.Algorithm
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Config selects the algorithm used for new digests and its work factor.
// Verification always accepts both argon2id and bcrypt digests.
type Config struct {
	Algorithm  string
	Argon2     Argon2idParams
	BcryptCost int
	// MaxConcurrent bounds simultaneous hash computations. Zero means NumCPU.
	MaxConcurrent int
}

// DefaultConfig returns argon2id at 64 MiB, 3 passes.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads > 4 {
		threads = 4
	}
	if threads < 1 {
		threads = 1
	}

	return Config{
		Algorithm: AlgorithmArgon2id,
		Argon2: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads),
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 10,
	}
}

func (c Config) maxConcurrent() int64 {
	if c.MaxConcurrent > 0 {
		return int64(c.MaxConcurrent)
	}
	return int64(runtime.NumCPU())
}
