package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidToken is returned for unknown, malformed, or revoked tokens
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Identity is the authenticated principal resolved from a bearer token
type Identity struct {
	UserID string
}

// Validator resolves a bearer token to an identity
type Validator interface {
	Validate(token string) (Identity, error)
}

// HashedSetValidator validates tokens against a set of SHA-256 hashes loaded
// from configuration. This is the production path: the raw tokens live in
// the external secret store, only hashes reach the process.
type HashedSetValidator struct {
	mu     sync.RWMutex
	byHash map[string]Identity
}

var _ Validator = (*HashedSetValidator)(nil)

// NewHashedSetValidator builds a validator from "sha256hash:userID" entries
func NewHashedSetValidator(entries []string) (*HashedSetValidator, error) {
	v := &HashedSetValidator{byHash: make(map[string]Identity, len(entries))}
	for i, entry := range entries {
		hash, userID, ok := strings.Cut(entry, ":")
		if !ok || hash == "" || userID == "" {
			return nil, fmt.Errorf("auth: token entry[%d]: want <hash>:<user_id>", i)
		}
		v.byHash[hash] = Identity{UserID: userID}
	}
	return v, nil
}

// Validate checks the token format, hashes it, and looks up the identity
func (v *HashedSetValidator) Validate(token string) (Identity, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return Identity{}, ErrInvalidToken
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	id, ok := v.byHash[HashToken(token)]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// StaticValidator is an in-memory validator for local development and tests.
// Tokens are stored raw and compared directly; no format is enforced.
type StaticValidator struct {
	mu      sync.RWMutex
	byToken map[string]Identity
}

var _ Validator = (*StaticValidator)(nil)

// NewStaticValidator creates an empty static validator
func NewStaticValidator() *StaticValidator {
	return &StaticValidator{byToken: make(map[string]Identity)}
}

// Add registers a raw token for a user
func (v *StaticValidator) Add(token, userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byToken[token] = Identity{UserID: userID}
}

// Validate looks up the raw token
func (v *StaticValidator) Validate(token string) (Identity, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	id, ok := v.byToken[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
