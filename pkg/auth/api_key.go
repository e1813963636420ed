package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2 hashing parameters (OWASP recommended)
const (
	argon2Time      = 3         // Number of iterations
	argon2Memory    = 64 * 1024 // 64MB
	argon2Threads   = 4         // Parallelism
	argon2KeyLength = 32        // 32 bytes (256 bits)
	saltLength      = 16        // 16 bytes salt

	argon2Prefix = "argon2id$"
)

// HashAPIKey hashes a supervisor API key using Argon2id.
// Format: argon2id$salt$hash
func HashAPIKey(key string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLength)

	return argon2Prefix +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(hash), nil
}

// APIKeyVerifier checks presented keys against a configured key, which is
// either an Argon2id hash from HashAPIKey or the plain key itself.
type APIKeyVerifier struct {
	plain []byte
	salt  []byte
	hash  []byte
}

// NewAPIKeyVerifier parses the configured key
func NewAPIKeyVerifier(configured string) (*APIKeyVerifier, error) {
	if !strings.HasPrefix(configured, argon2Prefix) {
		return &APIKeyVerifier{plain: []byte(configured)}, nil
	}

	parts := strings.Split(strings.TrimPrefix(configured, argon2Prefix), "$")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid hash format: expected 2 parts, got %d", len(parts))
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode hash: %w", err)
	}
	return &APIKeyVerifier{salt: salt, hash: hash}, nil
}

// Verify reports whether presented matches the configured key in constant time
func (v *APIKeyVerifier) Verify(presented string) bool {
	if v.hash == nil {
		return subtle.ConstantTimeCompare([]byte(presented), v.plain) == 1
	}
	actual := argon2.IDKey([]byte(presented), v.salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLength)
	return subtle.ConstantTimeCompare(actual, v.hash) == 1
}
