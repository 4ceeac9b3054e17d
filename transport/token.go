package transport

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"
)

// tokenValidityPeriod bounds how long a NEW_TOKEN token may be redeemed,
// per RFC 9000 §8.1.3's guidance that address-validation tokens should
// expire rather than be honored forever.
const tokenValidityPeriod = 7 * 24 * time.Hour

// tokenStore mints and validates the opaque address-validation tokens a
// server hands a client via the NEW_TOKEN frame, redeemable as the token
// field of a future connection's Initial packet to skip the Retry round
// trip. One store is shared by every connection accepted from a Config.
type tokenStore struct {
	once   sync.Once
	secret [32]byte
}

func (ts *tokenStore) init() {
	ts.once.Do(func() {
		if _, err := rand.Read(ts.secret[:]); err != nil {
			panic("transport: failed to seed token secret: " + err.Error())
		}
	})
}

// mint returns a new token binding the current time, so validate can later
// reject one that has aged past tokenValidityPeriod.
func (ts *tokenStore) mint(now time.Time) []byte {
	ts.init()
	b := make([]byte, 8, 8+sha256.Size)
	binary.BigEndian.PutUint64(b, uint64(now.Unix()))
	mac := hmac.New(sha256.New, ts.secret[:])
	mac.Write(b)
	return mac.Sum(b)
}

// validate reports whether token was minted by this store and has not
// expired.
func (ts *tokenStore) validate(token []byte, now time.Time) bool {
	ts.init()
	if len(token) != 8+sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, ts.secret[:])
	mac.Write(token[:8])
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, token[8:]) {
		return false
	}
	issued := time.Unix(int64(binary.BigEndian.Uint64(token[:8])), 0)
	return now.Sub(issued) >= 0 && now.Sub(issued) <= tokenValidityPeriod
}
