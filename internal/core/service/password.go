package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordScheme names a password digest algorithm.
type PasswordScheme string

const (
	// SchemeSHA256 is an unsalted lowercase-hex SHA-256 digest of the UTF-8
	// password. It is bit-compatible with legacy registry files and is the
	// default. Unsalted digests are a known
	// weakness: equal passwords produce equal digests.
	SchemeSHA256 PasswordScheme = "sha256"

	// SchemeArgon2id is a salted Argon2id digest in the PHC string format.
	SchemeArgon2id PasswordScheme = "argon2id"
)

// Argon2id parameters for new digests.
const (
	argon2Memory      uint32 = 16384
	argon2Time        uint32 = 2
	argon2Parallelism uint8  = 2
	argon2KeyLen      uint32 = 32
	argon2SaltLen            = 16
)

const argon2Prefix = "$argon2id$"

// PasswordHasher computes password digests for new accounts.
//
// Verification does not depend on the configured scheme: digests are
// self-describing, so registries holding both formats keep working.
type PasswordHasher struct {
	scheme PasswordScheme
}

// NewPasswordHasher creates a hasher for the given scheme. Empty means SHA-256.
func NewPasswordHasher(scheme PasswordScheme) (*PasswordHasher, error) {
	switch scheme {
	case "":
		scheme = SchemeSHA256
	case SchemeSHA256, SchemeArgon2id:
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
	return &PasswordHasher{scheme: scheme}, nil
}

// Scheme returns the scheme used for new digests.
func (h *PasswordHasher) Scheme() PasswordScheme {
	return h.scheme
}

// Hash computes the digest of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.scheme == SchemeArgon2id {
		return hashArgon2id(password)
	}
	return hashSHA256(password), nil
}

// Verify reports whether password matches digest.
func (h *PasswordHasher) Verify(password, digest string) bool {
	return VerifyPassword(password, digest)
}

// VerifyPassword checks password against a SHA-256 or Argon2id digest.
// Comparisons are constant-time.
func VerifyPassword(password, digest string) bool {
	if strings.HasPrefix(digest, argon2Prefix) {
		return verifyArgon2id(password, digest)
	}
	actual := hashSHA256(password)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(strings.ToLower(digest))) == 1
}

func hashSHA256(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// hashArgon2id returns $argon2id$v=19$m=<m>,t=<t>,p=<p>$<salt>$<hash>.
func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, argon2Memory, argon2Time, argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(password, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
