// SPDX-License-Identifier: MIT

// Package token signs and verifies the compact challenge tokens and result
// receipts exchanged with clients. A token is
// base64url(payload) + "." + base64url(HMAC-SHA256(base64url(payload))),
// both segments unpadded; the MAC covers the encoded payload bytes.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned for any malformed, tampered or unverifiable token.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed payload of a challenge token.
type Claims struct {
	ChallengeID string `json:"challengeId"`
	Mode        string `json:"mode"`
	IssuedAt    int64  `json:"iat"` // unix ms
	ExpiresAt   int64  `json:"exp"` // unix ms, advisory; the store enforces expiry
}

// Receipt is the signed payload of a verification receipt.
type Receipt struct {
	ChallengeID  string  `json:"challengeId"`
	Mode         string  `json:"mode"`
	Verified     bool    `json:"verified"`
	Score        float64 `json:"score"`
	Verdict      string  `json:"verdict"`
	VerdictClass string  `json:"verdictClass"`
	VerifiedAt   int64   `json:"verifiedAt"` // unix ms
}

// Signer binds the HMAC secret for tokens, receipts and the keyed IP hash.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer for the given secret. The secret must not be empty.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign encodes and signs challenge claims.
func (s *Signer) Sign(c Claims) (string, error) {
	return s.sign(c)
}

// Verify checks the signature in constant time and decodes the claims.
func (s *Signer) Verify(tok string) (Claims, error) {
	var c Claims
	if err := s.verify(tok, &c); err != nil {
		return Claims{}, err
	}
	return c, nil
}

// SignReceipt encodes and signs a verification receipt.
func (s *Signer) SignReceipt(r Receipt) (string, error) {
	return s.sign(r)
}

// VerifyReceipt checks a receipt signature and decodes the payload.
func (s *Signer) VerifyReceipt(tok string) (Receipt, error) {
	var r Receipt
	if err := s.verify(tok, &r); err != nil {
		return Receipt{}, err
	}
	return r, nil
}

// IPHash returns the first 16 hex characters of HMAC-SHA256(ip, secret).
// It is the only client identity artifact the service retains.
func (s *Signer) IPHash(ip string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

func (s *Signer) sign(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + s.mac(encoded), nil
}

func (s *Signer) verify(tok string, into any) error {
	encoded, sig, ok := strings.Cut(tok, ".")
	if !ok || encoded == "" || sig == "" {
		return ErrInvalidToken
	}
	want := s.mac(encoded)
	// hmac.Equal on the encoded MACs keeps the comparison constant-time.
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func (s *Signer) mac(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
