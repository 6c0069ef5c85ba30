package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonSaltLen uint32 = 16
	argonKeyLen  uint32 = 32
)

// Hasher hashes and verifies passwords using argon2id. The encoded form is the
// PHC string ($argon2id$v=...$m=...,t=...,p=...$salt$hash), so verification
// needs no side lookup of parameters. Callers must not log or persist
// plaintext passwords.
type Hasher struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
}

// NewHasher returns a Hasher with the given argon2id parameters. Zero values
// fall back to 64 MiB / 3 iterations / 2 lanes.
func NewHasher(memoryKB, timeCost uint32, parallelism uint8) *Hasher {
	if memoryKB == 0 {
		memoryKB = 64 * 1024
	}
	if timeCost == 0 {
		timeCost = 3
	}
	if parallelism == 0 {
		parallelism = 2
	}
	return &Hasher{Memory: memoryKB, Time: timeCost, Parallelism: parallelism}
}

// Hash produces a PHC-encoded argon2id digest of password with a fresh random salt.
func (h *Hasher) Hash(password []byte) (string, error) {
	if len(password) == 0 {
		return "", errors.New("empty password")
	}
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, h.Time, h.Memory, h.Parallelism, argonKeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Memory,
		h.Time,
		h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the PHC-encoded digest. A malformed
// digest verifies as false, never as an error: login code treats any mismatch
// the same way. Comparison is constant time over the derived keys.
func (h *Hasher) Verify(encoded string, password []byte) bool {
	memory, timeCost, parallelism, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	computed := argon2.IDKey(password, salt, timeCost, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}

func parsePHC(encoded string) (memory, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, hash
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, errors.New("malformed argon2id digest")
	}
	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, nil, nil, err
	}
	if version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("unsupported argon2 version")
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &p); err != nil {
		return 0, 0, 0, nil, nil, err
	}
	if memory == 0 || timeCost == 0 || p == 0 || p > 255 {
		return 0, 0, 0, nil, nil, errors.New("malformed argon2id parameters")
	}
	parallelism = uint8(p)
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, err
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, errors.New("malformed argon2id key")
	}
	return memory, timeCost, parallelism, salt, key, nil
}
