package tokens

import "time"

// BufferWindow is subtracted from a token's expiry before comparing it with the clock,
// so a token never lapses between a check and the call it authorizes.
// Every caller goes through IsExpiredAt; there is no per-caller override.
const BufferWindow = 5 * time.Minute

// IsExpired reports whether token should be treated as expired right now.
func IsExpired(token string) bool {
	return IsExpiredAt(token, time.Now())
}

// IsExpiredAt reports whether token should be treated as expired at now.
// Undecodable tokens and tokens without an exp claim are expired.
func IsExpiredAt(token string, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil {
		return true
	}
	return claims.ExpiredAt(now)
}

// ExpiredAt applies the buffer window to already decoded claims.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.Unix() <= now.Unix()+int64(BufferWindow/time.Second)
}
