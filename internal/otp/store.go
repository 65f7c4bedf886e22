// Package otp is a time-bounded in-memory cache for one-time phone
// verification codes. A single collaborator owns the instance; codes are
// single-use and expire explicitly.
package otp

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 5 * time.Minute

type entry struct {
	code      string
	expiresAt time.Time
}

// Store caches issued codes keyed by (visitor, phone).
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a Store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue generates and caches a 6-digit code for the visitor/phone pair,
// replacing any outstanding code. Expired entries for other pairs are
// dropped on the way, so the cache never outgrows the active visitors.
func (s *Store) Issue(visitorID, phone string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	code := (n.Int64() + 100000)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	c := pad6(code)
	s.entries[key(visitorID, phone)] = entry{code: c, expiresAt: s.now().Add(s.ttl)}
	return c, nil
}

// Verify checks a submitted code. A correct code is consumed; expired or
// unknown codes fail.
func (s *Store) Verify(visitorID, phone, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(visitorID, phone)
	e, ok := s.entries[k]
	if !ok {
		return false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, k)
		return false
	}
	if e.code != code {
		return false
	}
	delete(s.entries, k)
	return true
}

func (s *Store) sweepLocked() int {
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func key(visitorID, phone string) string {
	return visitorID + ":" + phone
}

func pad6(n int64) string {
	digits := []byte{'0', '0', '0', '0', '0', '0'}
	for i := 5; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
