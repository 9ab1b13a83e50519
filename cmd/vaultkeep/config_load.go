package main

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/vaultkeep/server/internal/config"
)

const envPrefix = "VAULTKEEP_"

// loadConfig builds a config.Config from defaults, an optional YAML file,
// and environment variables (highest precedence), per spec 1.1's
// "the *loading* mechanism lives at the entrypoint, not in the core."
func loadConfig(configFile string) (config.Config, error) {
	k := koanf.New(".")

	def := config.Default()
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return config.Config{}, err
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return config.Config{}, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyTransform), nil); err != nil {
		return config.Config{}, err
	}

	var cfg config.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// envKeyTransform turns VAULTKEEP_DATABASE_DSN into database.dsn, matching
// the nested struct/koanf tags in internal/config: the first underscore
// separates the section from the key (VAULTKEEP_TOKEN_DATA_DIR becomes
// token.data_dir), and under twofactor the second one separates the
// provider (VAULTKEEP_TWOFACTOR_DUO_API_HOST becomes twofactor.duo.api_host).
// Entries of the token.lifetimes map cannot be set this way.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	if section == "twofactor" {
		if provider, rest, ok := strings.Cut(key, "_"); ok {
			return section + "." + provider + "." + rest
		}
	}
	return section + "." + key
}
