package crypto

import (
	"bytes"
	"testing"
)

func TestRandomBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandomBytes(n)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandomBytes(n)
	if err != nil {
		t.Fatalf("RandomBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandomBytes(%d) are equal — looks non-random", n)
	}

	zero := make([]byte, n)
	if bytes.Equal(a, zero) {
		t.Fatalf("RandomBytes returned all zeros")
	}
}

func TestHashPassword_DeterministicOnSameInput(t *testing.T) {
	t.Parallel()

	pw := []byte("aGVsbG8=") // client-side master-password-hash, base64
	salt := []byte("NaCl-16-bytes?")
	const iter = 100_000

	h1 := HashPassword(pw, salt, iter)
	h2 := HashPassword(pw, salt, iter)

	if len(h1) == 0 || len(h2) == 0 {
		t.Fatalf("empty hash")
	}
	if !bytes.Equal(h1, h2) {
		t.Fatalf("hash not deterministic for same input")
	}

	h3 := HashPassword(pw, []byte("another-salt----"), iter)
	if bytes.Equal(h1, h3) {
		t.Fatalf("hash should differ when salt differs")
	}

	h4 := HashPassword(pw, salt, iter+1)
	if bytes.Equal(h1, h4) {
		t.Fatalf("hash should differ when iteration count differs")
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	pw := []byte("aGVsbG8=")
	salt := []byte("salty-salt-123456")
	const iter = 100_000

	hash := HashPassword(pw, salt, iter)

	if !VerifyPassword(pw, salt, hash, iter) {
		t.Fatalf("VerifyPassword: expected true for correct inputs")
	}
	if VerifyPassword([]byte("wrong"), salt, hash, iter) {
		t.Fatalf("VerifyPassword: expected false for wrong password hash")
	}
	if VerifyPassword(pw, []byte("wrong-salt-------"), hash, iter) {
		t.Fatalf("VerifyPassword: expected false for wrong salt")
	}
	if VerifyPassword(pw, salt, hash, iter+1) {
		t.Fatalf("VerifyPassword: expected false for wrong iteration count")
	}
}

func TestCtEq(t *testing.T) {
	t.Parallel()

	if !CtEq([]byte("abc"), []byte("abc")) {
		t.Fatalf("CtEq: equal slices should compare equal")
	}
	if CtEq([]byte("abc"), []byte("abd")) {
		t.Fatalf("CtEq: differing slices should compare unequal")
	}
	if CtEq([]byte("abc"), []byte("ab")) {
		t.Fatalf("CtEq: differing lengths should compare unequal")
	}
}

func TestGenerateEmailToken_LengthAndDigitsOnly(t *testing.T) {
	t.Parallel()

	tok, err := GenerateEmailToken(6)
	if err != nil {
		t.Fatalf("GenerateEmailToken: %v", err)
	}
	if len(tok) != 6 {
		t.Fatalf("len=%d, want 6", len(tok))
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			t.Fatalf("token contains non-digit rune %q", r)
		}
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	t.Parallel()

	a, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	b, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey(2): %v", err)
	}
	if a == b {
		t.Fatalf("two API keys collided")
	}
}
