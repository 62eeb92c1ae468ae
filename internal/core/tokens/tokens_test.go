package tokens

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mint builds an unsigned token carrying claims.
func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	// SigningMethodNone leaves an empty signature segment; keep the three-part shape.
	return s + "sig"
}

func TestDecode_ValidToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token := mint(t, jwt.MapClaims{
		"sub":      "user-1",
		"username": "alice@example.com",
		"name":     "Alice",
		"exp":      exp,
	})

	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Username)
	assert.Equal(t, "Alice", claims.Name)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, exp, claims.ExpiresAt.Unix())
}

func TestDecode_PaddedAndUnpaddedPayloads(t *testing.T) {
	// 16 bytes of JSON encodes to a segment that needs padding.
	payload := []byte(`{"exp":17000000}`)
	raw := base64.RawURLEncoding.EncodeToString(payload)
	padded := base64.URLEncoding.EncodeToString(payload)
	require.NotEqual(t, raw, padded)

	for _, seg := range []string{raw, padded} {
		claims, err := Decode("e30." + seg + ".sig")
		require.NoError(t, err, seg)
		assert.Equal(t, int64(17000000), claims.ExpiresAt.Unix())
	}
}

func TestDecode_URLAlphabet(t *testing.T) {
	// Payload chosen so the base64url form contains '-' and '_'.
	payload := []byte(`{"name":"??>>~~","exp":1}`)
	seg := base64.RawURLEncoding.EncodeToString(payload)
	require.True(t, strings.ContainsAny(seg, "-_"), seg)

	claims, err := Decode("e30." + seg + ".sig")
	require.NoError(t, err)
	assert.Equal(t, "??>>~~", claims.Name)
}

func TestDecode_Malformed(t *testing.T) {
	valid := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":99999999999}`))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc." + valid},
		{"four segments", "a." + valid + ".c.d"},
		{"invalid base64", "a.!!!notbase64!!!.c"},
		{"standard alphabet", "a.+/+/.c"},
		{"payload not json", "a." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".c"},
		{"payload is array", "a." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".c"},
		{"exp is string", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`)) + ".c"},
		{"empty payload", "a..c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := Decode(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrMalformedToken)
			assert.True(t, IsExpired(tt.token), "malformed token must be expired")
		})
	}
}

func TestIsExpiredAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	buffer := int64(BufferWindow / time.Second)

	tests := []struct {
		name    string
		exp     interface{}
		expired bool
	}{
		{"far future", now.Unix() + 3600, false},
		{"just beyond buffer", now.Unix() + buffer + 1, false},
		{"exactly at buffer", now.Unix() + buffer, true},
		{"inside buffer", now.Unix() + buffer - 1, true},
		{"now", now.Unix(), true},
		{"past", now.Unix() - 60, true},
		{"zero", 0, true},
		{"fractional beyond buffer", float64(now.Unix()+buffer) + 30.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := mint(t, jwt.MapClaims{"sub": "u", "exp": tt.exp})
			assert.Equal(t, tt.expired, IsExpiredAt(token, now))
		})
	}
}

func TestIsExpiredAt_MissingExp(t *testing.T) {
	token := mint(t, jwt.MapClaims{"sub": "u"})
	assert.True(t, IsExpiredAt(token, time.Now()))
}

func TestIsExpired_UsesWallClock(t *testing.T) {
	fresh := mint(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	stale := mint(t, jwt.MapClaims{"exp": time.Now().Add(BufferWindow / 2).Unix()})

	assert.False(t, IsExpired(fresh))
	assert.True(t, IsExpired(stale))
}

func TestClaims_Identity(t *testing.T) {
	tests := []struct {
		name        string
		claims      Claims
		displayName string
		account     string
	}{
		{"name wins", Claims{Name: "Alice", Username: "alice"}, "Alice", "alice"},
		{"username fallback", Claims{Username: "alice"}, "alice", "alice"},
		{"subject fallback", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}, "User", "sub-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.displayName, tt.claims.DisplayName())
			assert.Equal(t, tt.account, tt.claims.Account())
		})
	}
}
