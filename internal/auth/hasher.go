// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hash algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
	// bcrypt rejects longer inputs.
	bcryptMaxInput = 72

	// Upper bounds accepted from stored hashes.
	maxArgon2MemoryKiB = 4 * 1024 * 1024
	maxArgon2Time      = 64
)

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an encoded hash of the password. Empty passwords are valid input.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// wrapping ErrInvalidHashFormat when the hash cannot be parsed.
	Verify(password, hash string) (bool, error)
}

// HasherParams is the work factor applied to new hashes. Verification always
// uses the parameters encoded in the stored hash.
type HasherParams struct {
	Algorithm  string
	Time       uint32
	MemoryKiB  uint32
	Threads    uint8
	BcryptCost int
}

// DefaultHasherParams returns the OWASP-recommended argon2id parameters.
func DefaultHasherParams() HasherParams {
	return HasherParams{
		Algorithm:  AlgorithmArgon2id,
		Time:       1,
		MemoryKiB:  64 * 1024,
		Threads:    4,
		BcryptCost: 12,
	}
}

// Hasher implements PasswordHasher. It produces argon2id (PHC string format)
// or bcrypt hashes and verifies both.
type Hasher struct {
	params HasherParams
}

// NewHasher creates a Hasher with the given work factor.
func NewHasher(params HasherParams) (*Hasher, error) {
	switch params.Algorithm {
	case AlgorithmArgon2id:
		if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
			return nil, oops.Code("HASHER_INVALID_PARAMS").
				With("time", params.Time).
				With("memory_kib", params.MemoryKiB).
				With("threads", params.Threads).
				Errorf("argon2id time, memory and threads must be positive")
		}
	case AlgorithmBcrypt:
		if params.BcryptCost < bcrypt.MinCost || params.BcryptCost > bcrypt.MaxCost {
			return nil, oops.Code("HASHER_INVALID_PARAMS").
				With("bcrypt_cost", params.BcryptCost).
				Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
		// Passwords past bcrypt's input limit are hashed with argon2id.
		if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
			defaults := DefaultHasherParams()
			params.Time, params.MemoryKiB, params.Threads = defaults.Time, defaults.MemoryKiB, defaults.Threads
		}
	default:
		return nil, oops.Code("HASHER_INVALID_PARAMS").
			With("algorithm", params.Algorithm).
			Errorf("unsupported hash algorithm %q", params.Algorithm)
	}
	return &Hasher{params: params}, nil
}

// Hash produces a hash of the password using the configured algorithm. A
// bcrypt hasher produces argon2id for passwords longer than bcryptMaxInput.
func (h *Hasher) Hash(password string) (string, error) {
	if h.params.Algorithm == AlgorithmBcrypt && len(password) <= bcryptMaxInput {
		out, err := bcrypt.GenerateFromPassword([]byte(password), h.params.BcryptCost)
		if err != nil {
			return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
		}
		return string(out), nil
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the encoded hash.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash)
	case isBcryptHash(encodedHash):
		return verifyBcrypt(password, encodedHash)
	default:
		return false, invalidHash("unsupported hash algorithm")
	}
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, invalidHash(err.Error())
	}
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, invalidHash("wrong number of segments")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, invalidHash("unparseable version")
	}
	if version != argon2.Version {
		return false, invalidHash(fmt.Sprintf("unsupported argon2 version %d", version))
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, invalidHash("unparseable parameters")
	}
	if memory == 0 || memory > maxArgon2MemoryKiB || time == 0 || time > maxArgon2Time || threads == 0 || threads > 255 {
		return false, invalidHash("parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, invalidHash("salt is not base64")
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, invalidHash("digest is not base64")
	}

	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<10 {
		return false, invalidHash(fmt.Sprintf("invalid key length %d", keyLen))
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	// Constant-time comparison
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func invalidHash(reason string) error {
	return oops.Code(CodeInvalidHash).
		With(keyReason, reason).
		Wrap(ErrInvalidHashFormat)
}
