package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

const algHS256 = "HS256"

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims are the registered claims plus the identity fields issued by the identity provider.
type Claims struct {
	Subject   string   `json:"sub"`
	Email     string   `json:"email,omitempty"`
	Audience  audience `json:"aud,omitempty"`
	Issuer    string   `json:"iss,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
}

// audience accepts both the string and the array form of "aud".
type audience []string

func (a *audience) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*a = audience{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

// HS256Verifier validates HMAC-SHA256 signed bearer tokens.
type HS256Verifier struct {
	key      []byte
	audience string
	now      func() time.Time
}

// NewHS256Verifier creates a verifier for tokens signed with secret.
// A non-empty audience is required to appear in the token's "aud" claim.
func NewHS256Verifier(secret, audience string) (*HS256Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSigningKey
	}
	return &HS256Verifier{key: []byte(secret), audience: audience, now: time.Now}, nil
}

// Verify checks the signature and temporal claims and returns the caller identity.
func (v *HS256Verifier) Verify(token string) (Identity, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Identity{}, ErrInvalidToken
	}

	if !hmac.Equal([]byte(parts[2]), []byte(v.sign(parts[0]+"."+parts[1]))) {
		return Identity{}, ErrInvalidSignature
	}

	var h header
	if err := decodeSegment(parts[0], &h); err != nil {
		return Identity{}, err
	}
	if h.Algorithm != algHS256 {
		return Identity{}, ErrUnexpectedSigningMethod
	}

	var c Claims
	if err := decodeSegment(parts[1], &c); err != nil {
		return Identity{}, err
	}

	now := v.now().Unix()
	if c.ExpiresAt > 0 && now >= c.ExpiresAt {
		return Identity{}, ErrExpiredToken
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return Identity{}, ErrInvalidToken
	}
	if v.audience != "" && !slices.Contains(c.Audience, v.audience) {
		return Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Identity{}, ErrInvalidClaims
	}

	return Identity{UserID: c.Subject, Email: c.Email}, nil
}

// Sign issues a token for claims. Used by tests and local tooling; production
// tokens come from the identity provider.
func (v *HS256Verifier) Sign(c Claims) (string, error) {
	h, err := json.Marshal(header{Type: "JWT", Algorithm: algHS256})
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	payload := encodeSegment(h) + "." + encodeSegment(body)
	return payload + "." + v.sign(payload), nil
}

func (v *HS256Verifier) sign(payload string) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(payload))
	return encodeSegment(mac.Sum(nil))
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeSegment(s string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
