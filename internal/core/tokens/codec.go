// Package tokens decodes bearer token payloads and decides whether they have expired.
// Tokens are never verified here: the external API is the only party that checks signatures.
package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token does not have a decodable payload segment.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the subset of the token payload the web client cares about.
// Every field is optional; an absent expiry makes the token count as expired.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// segmentParser re-pads base64url segments before decoding, so tokens issued with or
// without trailing '=' decode the same way.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode parses the payload segment of a three-part token.
// Only the middle segment is read. Any structural, encoding or JSON problem yields ErrMalformedToken.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrMalformedToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload json: %v", ErrMalformedToken, err)
	}

	return &claims, nil
}

// DisplayName returns the name to greet the user with.
func (c *Claims) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Username != "":
		return c.Username
	default:
		return "User"
	}
}

// Account returns the username claim, falling back to the subject.
func (c *Claims) Account() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}
