package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "vaultkeep_ed25519"
	publicKeyFile  = "vaultkeep_ed25519.pub"
	filePerm       = 0o600
)

// LoadOrGenerateKeyPair reads an Ed25519 keypair from dataDir, generating
// and persisting one on first run (spec 4.2: "Signing is with a per-install
// keypair persisted to the data folder on first run").
func LoadOrGenerateKeyPair(dataDir string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	privPath := filepath.Join(dataDir, privateKeyFile)
	pubPath := filepath.Join(dataDir, publicKeyFile)

	if priv, pub, err := readKeyPair(privPath, pubPath); err == nil {
		return priv, pub, nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := writePEM(privPath, "PRIVATE KEY", mustMarshalPKCS8(priv)); err != nil {
		return nil, nil, err
	}
	if err := writePEM(pubPath, "PUBLIC KEY", mustMarshalPKIX(pub)); err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func readKeyPair(privPath, pubPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	privBytes, err := os.ReadFile(privPath)
	if err != nil {
		return nil, nil, err
	}
	block, _ := pem.Decode(privBytes)
	if block == nil {
		return nil, nil, fmt.Errorf("invalid PEM in %s", privPath)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("%s does not contain an Ed25519 key", privPath)
	}
	return priv, priv.Public().(ed25519.PublicKey), nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

func mustMarshalPKCS8(priv ed25519.PrivateKey) []byte {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		panic(fmt.Sprintf("marshal ed25519 private key: %v", err))
	}
	return der
}

func mustMarshalPKIX(pub ed25519.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		panic(fmt.Sprintf("marshal ed25519 public key: %v", err))
	}
	return der
}
