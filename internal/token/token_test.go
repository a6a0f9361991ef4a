// SPDX-License-Identifier: MIT

package token_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointerlabs/clnp/internal/token"
)

func newSigner() *token.Signer {
	return token.NewSigner([]byte("test-secret-0123456789abcdef"))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := newSigner()
	now := time.Now().UnixMilli()
	claims := token.Claims{
		ChallengeID: "a3f9c2e14b7d80561290ffee12345678",
		Mode:        "standalone",
		IssuedAt:    now,
		ExpiresAt:   now + 180_000,
	}

	tok, err := s.Sign(claims)
	require.NoError(t, err)
	assert.Equal(t, 2, len(strings.Split(tok, ".")), "token must have exactly two segments")
	assert.NotContains(t, tok, "=", "segments must be unpadded")

	got, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := newSigner()
	tok, err := s.Sign(token.Claims{ChallengeID: "deadbeef", Mode: "standalone"})
	require.NoError(t, err)

	payload, sig, _ := strings.Cut(tok, ".")

	t.Run("tampered payload", func(t *testing.T) {
		forged := token.Claims{ChallengeID: "deadbeef", Mode: "embed"}
		fs := newSigner()
		forgedTok, err := fs.Sign(forged)
		require.NoError(t, err)
		forgedPayload, _, _ := strings.Cut(forgedTok, ".")

		_, err = s.Verify(forgedPayload + "." + sig)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		flipped := []byte(sig)
		if flipped[0] == 'A' {
			flipped[0] = 'B'
		} else {
			flipped[0] = 'A'
		}
		_, err := s.Verify(payload + "." + string(flipped))
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := token.NewSigner([]byte("entirely-different-secret"))
		_, err := other.Verify(tok)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, bad := range []string{"", ".", "a", "a.b.c", payload, "." + sig, payload + "."} {
			_, err := s.Verify(bad)
			assert.ErrorIs(t, err, token.ErrInvalidToken, "input %q", bad)
		}
	})

	t.Run("valid signature over non-json payload", func(t *testing.T) {
		// The MAC construction is documented: HMAC-SHA256 over the encoded
		// payload bytes, base64url unpadded. A correctly signed token whose
		// payload is not JSON must still fail closed.
		enc := base64.RawURLEncoding.EncodeToString([]byte("not json"))
		mac := hmac.New(sha256.New, []byte("test-secret-0123456789abcdef"))
		mac.Write([]byte(enc))
		sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

		_, err := s.Verify(enc + "." + sig)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})
}

func TestReceiptRoundTrip(t *testing.T) {
	s := newSigner()
	r := token.Receipt{
		ChallengeID:  "a3f9c2e14b7d80561290ffee12345678",
		Mode:         "standalone",
		Verified:     true,
		Score:        0.78,
		Verdict:      "BIOLOGICAL CONTROLLER DETECTED",
		VerdictClass: "BIOLOGICAL",
		VerifiedAt:   time.Now().UnixMilli(),
	}

	tok, err := s.SignReceipt(r)
	require.NoError(t, err)

	got, err := s.VerifyReceipt(tok)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	// A receipt does not verify as a challenge token payload with the same
	// fields; callers pick the right Verify method per artifact.
	claims, err := s.Verify(tok)
	require.NoError(t, err, "signature itself is valid")
	assert.Equal(t, r.ChallengeID, claims.ChallengeID)
}

func TestIPHash(t *testing.T) {
	s := newSigner()
	h1 := s.IPHash("203.0.113.7")
	h2 := s.IPHash("203.0.113.7")
	h3 := s.IPHash("203.0.113.8")

	assert.Len(t, h1, 16)
	assert.Equal(t, h1, h2, "hash must be stable for the same IP")
	assert.NotEqual(t, h1, h3, "different IPs must not collide trivially")
	assert.NotContains(t, h1, "203", "raw IP must not leak into the hash")

	other := token.NewSigner([]byte("other-secret"))
	assert.NotEqual(t, h1, other.IPHash("203.0.113.7"), "hash must be keyed")
}
