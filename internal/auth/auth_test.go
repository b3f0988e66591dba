package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("s3cret!")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.True(t, h.Verify(hash, "s3cret!"))
	assert.False(t, h.Verify(hash, "wrong"))
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("same")
	require.NoError(t, err)
	second, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	assert.False(t, h.Verify("", "anything"))
	assert.False(t, h.Verify("plaintext", "plaintext"))
}

func TestNewHasherRejectsBadCost(t *testing.T) {
	_, err := NewHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}

func TestIssueAndParse(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(42, "admin")
	require.NoError(t, err)

	identity, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: "admin"}, identity)
}

func TestParseExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.Issue(1, "user")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	other, err := NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	token, err := other.Issue(1, "user")
	require.NoError(t, err)

	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMalformed(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestParseRequiresExpiry(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNonNumericSubject(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("  ", time.Hour)
	assert.Error(t, err)
}
