package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// AdminTokenPreset selects the Argon2id parameters used by the `hash` CLI
// subcommand (spec section 6) to turn an admin-panel password into a PHC
// string suitable for storage in configuration.
type AdminTokenPreset struct {
	Name        string
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLen      uint32
}

// Presets mirror the two tuning profiles operators choose between: a
// heavier one matching the upstream vendor's own default, and a lighter one
// following OWASP's password-storage cheat sheet.
var (
	PresetBitwarden = AdminTokenPreset{Name: "bitwarden", Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32}
	PresetOWASP     = AdminTokenPreset{Name: "owasp", Time: 2, MemoryKiB: 19 * 1024, Parallelism: 1, KeyLen: 32}
)

// PresetByName looks up a preset by its CLI flag value.
func PresetByName(name string) (AdminTokenPreset, error) {
	switch strings.ToLower(name) {
	case "", PresetBitwarden.Name:
		return PresetBitwarden, nil
	case PresetOWASP.Name:
		return PresetOWASP, nil
	default:
		return AdminTokenPreset{}, fmt.Errorf("unknown hash preset %q", name)
	}
}

// HashAdminToken produces a PHC-formatted Argon2id string
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash) for the given password and
// preset, using a freshly generated random salt.
func HashAdminToken(password string, preset AdminTokenPreset) (string, error) {
	salt, err := RandomBytes(16)
	if err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(password), salt, preset.Time, preset.MemoryKiB, preset.Parallelism, preset.KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, preset.MemoryKiB, preset.Time, preset.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyAdminToken checks password against a PHC string produced by
// HashAdminToken.
func VerifyAdminToken(password, phc string) (bool, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("malformed argon2id PHC string")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, err
	}
	var memKiB, timeCost uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memKiB, &timeCost, &parallelism); err != nil {
		return false, err
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, timeCost, memKiB, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(got, expected) == 1, nil
}
