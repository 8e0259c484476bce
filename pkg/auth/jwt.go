package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingSigningKey = errors.New("auth: missing signing key")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrInvalidSignature  = errors.New("auth: invalid signature")
	ErrExpiredToken      = errors.New("auth: token is expired")
)

const signingAlgorithm = "HS256"

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims are the token claims this service cares about. Subject is the
// acting user's identifier, Role its coarse permission level.
type Claims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid checks the temporal claims. A zero ExpiresAt means the token
// never expires.
func (c Claims) Valid() error {
	if c.ExpiresAt > 0 && time.Now().Unix() > c.ExpiresAt {
		return ErrExpiredToken
	}
	return nil
}

// Service signs and verifies HS256 tokens.
type Service struct {
	signingKey []byte
}

// NewService creates a token service. The key should be at least 32
// bytes for adequate HMAC-SHA256 security.
func NewService(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	return &Service{signingKey: []byte(signingKey)}, nil
}

// Generate creates a signed token for the given claims.
func (s *Service) Generate(claims Claims) (string, error) {
	headerJSON, err := json.Marshal(header{Type: "JWT", Algorithm: signingAlgorithm})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payload := b64encode(headerJSON) + "." + b64encode(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies a token's signature and temporal claims.
func (s *Service) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	// Constant-time comparison prevents timing attacks on the signature.
	payload := parts[0] + "." + parts[1]
	expected := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	headerJSON, err := b64decode(parts[0])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return Claims{}, ErrInvalidToken
	}
	// Reject unexpected algorithms to prevent algorithm confusion attacks.
	if h.Algorithm != signingAlgorithm {
		return Claims{}, ErrInvalidToken
	}

	claimsJSON, err := b64decode(parts[1])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}

	if err := claims.Valid(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (s *Service) sign(payload string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(payload))
	return b64encode(h.Sum(nil))
}

// JWTs use unpadded base64url per RFC 7515.
func b64encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func b64decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
