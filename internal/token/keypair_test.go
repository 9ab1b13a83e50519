package token

import (
	"bytes"
	"testing"
)

func TestLoadOrGenerateKeyPairPersists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	priv1, pub1, err := LoadOrGenerateKeyPair(dir)
	if err != nil {
		t.Fatalf("first LoadOrGenerateKeyPair: %v", err)
	}

	priv2, pub2, err := LoadOrGenerateKeyPair(dir)
	if err != nil {
		t.Fatalf("second LoadOrGenerateKeyPair: %v", err)
	}

	if !bytes.Equal(priv1, priv2) {
		t.Fatalf("expected the same private key to be reloaded from disk")
	}
	if !bytes.Equal(pub1, pub2) {
		t.Fatalf("expected the same public key to be reloaded from disk")
	}
}

func TestLoadOrGenerateKeyPairDistinctDirs(t *testing.T) {
	t.Parallel()

	priv1, _, err := LoadOrGenerateKeyPair(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrGenerateKeyPair dir1: %v", err)
	}
	priv2, _, err := LoadOrGenerateKeyPair(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrGenerateKeyPair dir2: %v", err)
	}

	if bytes.Equal(priv1, priv2) {
		t.Fatalf("expected distinct data dirs to generate distinct keypairs")
	}
}
