// Package privacy produces the daily rotating salt mixed into cookieless
// session fingerprints.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DailySalt returns hex(sha256(YYYY-MM-DD + secret)) for the UTC day of now.
func DailySalt(now time.Time, secret string) string {
	sum := sha256.Sum256([]byte(now.UTC().Format(time.DateOnly) + secret))
	return hex.EncodeToString(sum[:])
}

// SaltSource yields the current day's salt.
type SaltSource struct {
	secret string
	now    func() time.Time
}

// NewSaltSource creates a SaltSource. A nil clock uses time.Now.
func NewSaltSource(secret string, now func() time.Time) *SaltSource {
	if now == nil {
		now = time.Now
	}
	return &SaltSource{secret: secret, now: now}
}

// Current returns today's salt.
func (s *SaltSource) Current() string {
	return DailySalt(s.now(), s.secret)
}
