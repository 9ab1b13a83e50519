// Package crypto implements the CryptoPrimitives component: constant-time
// comparison, random-byte generation and the server-side PBKDF2 step
// applied on top of the client-computed master-password-hash.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

// hashKeyLen is the output length of the server-side PBKDF2 derivation.
const hashKeyLen = 32

// HashPassword derives the server-stored password hash from the client's
// master-password-hash, a per-user salt and the configured server-side
// iteration count (spec 4.1). It does not itself know the client-side KDF
// parameters (PBKDF2/Argon2id, iterations, memory, parallelism) — those are
// advertised separately at prelogin and never used here.
func HashPassword(masterPasswordHash, salt []byte, iterations int) []byte {
	return pbkdf2Key(masterPasswordHash, salt, iterations)
}

// VerifyPassword reports whether masterPasswordHash re-derives expected
// under salt/iterations, using a constant-time comparison.
func VerifyPassword(masterPasswordHash, salt, expected []byte, iterations int) bool {
	got := HashPassword(masterPasswordHash, salt, iterations)
	return CtEq(got, expected)
}

func pbkdf2Key(secret, salt []byte, iterations int) []byte {
	return pbkdf2.Key(secret, salt, iterations, hashKeyLen, sha256.New)
}

// CtEq performs a constant-time byte comparison. Every comparison of a
// user-supplied token (2FA codes, AuthRequest access codes, API keys) must
// route through this function rather than ==, per spec invariant 6.
func CtEq(a, b []byte) bool {
	if len(a) != len(b) {
		// Still consume constant work proportional to len(a) so callers
		// that pass attacker-controlled lengths don't leak length via
		// short-circuit timing on the common path.
		subtle.ConstantTimeCompare(a, a)
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateAPIKey returns a 32-byte base64url-encoded client API key.
func GenerateAPIKey() (string, error) {
	b, err := RandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateEmailToken returns a numeric code of the given length, suitable
// for emailed 2FA and email-verification codes (spec 4.6 Email provider).
func GenerateEmailToken(length int) (string, error) {
	const digits = "0123456789"
	out := make([]byte, length)
	max := big.NewInt(int64(len(digits)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}

// GenerateSendFileID returns 32 random bytes, base64url-encoded without
// padding, as a URL-safe identifier for a Send file
// blob, used as the <file_uuid> half of its content-addressed path.
func GenerateSendFileID() (string, error) {
	b, err := RandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
