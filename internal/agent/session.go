package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

// SessionStorageKey is the profile key holding the session id.
const SessionStorageKey = "spectre_session_id"

const (
	sessionPrefix     = "sess_"
	anonSaltPrefix    = "sess_anon_"
	sessionHashLength = 16
	djb2Seed          = 5381
)

// Fingerprint is the set of coarse browser traits mixed with the daily
// salt. None of it is transmitted.
type Fingerprint struct {
	UserAgent    string `json:"user_agent"`
	Language     string `json:"language"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	Timezone     string `json:"timezone"`
}

// String joins the traits with the salt as salt|ua|lang|WxH|tz.
func (f Fingerprint) String(salt string) string {
	return strings.Join([]string{
		salt,
		f.UserAgent,
		f.Language,
		fmt.Sprintf("%dx%d", f.ScreenWidth, f.ScreenHeight),
		f.Timezone,
	}, "|")
}

// SessionIdentifier derives the cookieless session id.
type SessionIdentifier struct {
	storage    Storage
	cryptoHash bool
	now        func() time.Time
	logger     logger.Logger
}

// NewSessionIdentifier creates a SessionIdentifier. cryptoHash selects
// SHA-256; without it the djb2 fallback is used.
func NewSessionIdentifier(storage Storage, cryptoHash bool, now func() time.Time, log logger.Logger) *SessionIdentifier {
	return &SessionIdentifier{storage: storage, cryptoHash: cryptoHash, now: now, logger: log}
}

// Identify returns the stored id unchanged when one exists. Otherwise it
// hashes the fingerprint with salt, stores and returns the new id. A stored
// id is never rotated, even when the daily salt changes.
func (s *SessionIdentifier) Identify(ctx context.Context, salt string, fp Fingerprint) string {
	stored, ok, err := s.storage.Get(ctx, SessionStorageKey)
	if err != nil {
		s.logger.Warn("Session storage unreadable", logger.Error(err))
	}
	if ok && stored != "" {
		return stored
	}

	if salt == "" {
		salt = anonSaltPrefix + strconv.FormatInt(s.now().UnixMilli(), 10)
	}

	id := sessionPrefix + fingerprintHash(fp.String(salt), s.cryptoHash)

	if err = s.storage.Set(ctx, SessionStorageKey, id); err != nil {
		s.logger.Warn("Session id not persisted", logger.Error(err))
	}
	return id
}

// fingerprintHash returns the first 16 hex chars of SHA-256, or the 64-bit
// djb2 digest when crypto hashing is unavailable.
func fingerprintHash(input string, cryptoHash bool) string {
	if cryptoHash {
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:])[:sessionHashLength]
	}
	return fmt.Sprintf("%016x", djb2(input))
}

func djb2(s string) uint64 {
	var hash uint64 = djb2Seed
	for i := range len(s) {
		hash = hash<<5 + hash + uint64(s[i])
	}
	return hash
}
