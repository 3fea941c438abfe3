// Package session defines the token bundle representing one authenticated
// session and the pure validity policy over it.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/singlebase/singlebase-go/internal/common"
)

// DefaultValidityMargin is how long before the declared expiry a token is
// already treated as invalid, so it is never handed out about to expire
// mid-flight on a slow network.
const DefaultValidityMargin = 60 * time.Second

// TokenInfo holds the claims decoded (unverified) from the id token. The SDK
// never verifies signatures; the backend is the authority and the client only
// needs the expiry and identity claims.
type TokenInfo struct {
	Exp   int64  `json:"exp,omitempty"`
	Iat   int64  `json:"iat,omitempty"`
	Sub   string `json:"sub,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Session is the authoritative token payload for one authenticated session.
// Revision is a wall-clock-millisecond stamp assigned at cache-write time; it
// only answers "is this a newer copy than mine", never causal order.
type Session struct {
	IDToken            string     `json:"id_token"`
	RefreshToken       string     `json:"refresh_token,omitempty"`
	ExpiryEpochSeconds int64      `json:"expiry_epoch_seconds,omitempty"`
	IssuedAt           time.Time  `json:"issued_at,omitempty"`
	ComputedExpiryAt   time.Time  `json:"computed_expiry_at,omitempty"`
	Revision           int64      `json:"revision,omitempty"`
	TokenInfo          *TokenInfo `json:"token_info,omitempty"`
}

// Profile carries denormalized identity attributes attached to a session.
// It is display data only, never authoritative for authentication.
type Profile struct {
	Key         string         `json:"_key,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Username    string         `json:"username,omitempty"`
	PhotoURL    string         `json:"photo_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// FromPayload builds a Session from a backend auth response. The payload must
// carry id_token; refresh_token and expiry fields are taken when present, and
// issued_at/computed_expiry_at are computed from the server-declared TTL at
// the moment the record is accepted.
func FromPayload(data map[string]any, now time.Time) (*Session, error) {
	idToken, _ := data["id_token"].(string)
	if idToken == "" {
		return nil, fmt.Errorf("auth payload: %w: missing id_token", common.ErrInvalidToken)
	}

	s := &Session{IDToken: idToken, IssuedAt: now}
	if rt, ok := data["refresh_token"].(string); ok {
		s.RefreshToken = rt
	}
	if exp, ok := numberField(data, "expiry_epoch_seconds", "exp"); ok {
		s.ExpiryEpochSeconds = exp
	}
	if ttl, ok := numberField(data, "expires_in"); ok {
		s.ComputedExpiryAt = now.Add(time.Duration(ttl) * time.Second)
	}

	if info, err := DecodeTokenInfo(idToken); err == nil {
		s.TokenInfo = info
		if s.ExpiryEpochSeconds == 0 {
			s.ExpiryEpochSeconds = info.Exp
		}
	}
	return s, nil
}

// DecodeTokenInfo parses the JWT claims without verifying the signature.
func DecodeTokenInfo(idToken string) (*TokenInfo, error) {
	var claims jwt.MapClaims = map[string]any{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}

	info := &TokenInfo{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.Exp = exp.Unix()
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.Iat = iat.Unix()
	}
	if sub, err := claims.GetSubject(); err == nil {
		info.Sub = sub
	}
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		info.Name = name
	}
	return info, nil
}

// Valid reports whether the session's id token is usable at instant now:
// the token must be present, carry an expiry claim, and keep strictly more
// than the margin of life left. A record with no expiry is always invalid.
func (s *Session) Valid(margin time.Duration, now time.Time) bool {
	if s == nil || s.IDToken == "" {
		return false
	}
	if s.TokenInfo == nil || s.TokenInfo.Exp == 0 {
		return false
	}
	// exp has whole-second granularity while now does not; the second now
	// falls in counts as already spent, so the cutoff is its end.
	cutoff := now.Truncate(time.Second).Add(time.Second).UnixMilli()
	return s.TokenInfo.Exp*1000-margin.Milliseconds() > cutoff
}

// Encode serializes the session for the persistent cache.
func (s *Session) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return b, nil
}

// Decode deserializes a persisted cache entry. Empty input yields nil.
func Decode(b []byte) (*Session, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func numberField(data map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		switch v := data[k].(type) {
		case float64:
			return int64(v), true
		case int64:
			return v, true
		case int:
			return int64(v), true
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
