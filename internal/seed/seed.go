// Package seed implements the ephemeral handoff store: a short-lived
// {id,u,a} payload stashed under a random token so an external trigger
// can hand its first question/answer pair to the client without a long
// URL. Records are consumed at most once and otherwise expire.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Record is the payload referenced by a handoff token.
type Record struct {
	ID string `json:"id,omitempty"`
	U  string `json:"u"`
	A  string `json:"a"`
}

// TTL bounds for stored records.
const (
	MinTTL     = 10 * time.Second
	MaxTTL     = 600 * time.Second
	DefaultTTL = 180 * time.Second
)

// keyPrefix namespaces handoff records in the backing store.
const keyPrefix = "seed:"

var (
	// ErrNotFound is returned by Take when the token does not exist or
	// has expired.
	ErrNotFound = errors.New("seed: token not found or expired")
	// ErrInvalidPayload is returned by Take when the stored value does
	// not decode into a Record.
	ErrInvalidPayload = errors.New("seed: invalid stored payload")
	// ErrBackendUnavailable is returned when the backing store is
	// unreachable or its credentials are missing. It is distinct from
	// ErrNotFound so callers can tell an outage from a consumed token.
	ErrBackendUnavailable = errors.New("seed: backend unavailable")
	// ErrEmptyTurn is returned by Put when u or a is empty after trimming.
	ErrEmptyTurn = errors.New("seed: u and a must be non-empty")
)

// Store persists handoff records under opaque tokens.
type Store interface {
	// Put stores the record and returns the generated token together
	// with the effective (clamped) TTL.
	Put(ctx context.Context, rec Record, ttl time.Duration) (string, time.Duration, error)

	// Take retrieves and invalidates the record for a token. A record
	// is retrievable at most once.
	Take(ctx context.Context, token string) (Record, error)
}

// ClampTTL forces ttl into [MinTTL, MaxTTL], substituting DefaultTTL for
// a zero or negative value.
func ClampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	if ttl < MinTTL {
		return MinTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}

// validate trims the turn fields and rejects empty ones.
func (r *Record) validate() error {
	r.ID = strings.TrimSpace(r.ID)
	r.U = strings.TrimSpace(r.U)
	r.A = strings.TrimSpace(r.A)
	if r.U == "" || r.A == "" {
		return ErrEmptyTurn
	}
	return nil
}

// newToken builds an opaque token from the current time plus a random
// suffix. Not guessable in practice given the short record lifetime.
func newToken() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + hex.EncodeToString(buf)
}
