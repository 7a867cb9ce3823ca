// Package config loads pm settings from defaults, an optional pm.yaml file,
// PM_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/credvault/auth"
	"github.com/Hussein-Mazeh/credvault/internal/logging"
	"github.com/Hussein-Mazeh/credvault/krypto"
	"github.com/Hussein-Mazeh/credvault/store"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. PM_VAULT_PATH.
	EnvPrefix = "PM"
	// FileName is the config file base name searched for in the default locations.
	FileName = "pm"
)

// Config holds all pm configuration.
type Config struct {
	Vault     VaultConfig     `mapstructure:"vault"`
	KDF       KDFConfig       `mapstructure:"kdf"`
	Cipher    string          `mapstructure:"cipher"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Log       LogConfig       `mapstructure:"log"`
}

// VaultConfig locates the vault and picks its storage.
type VaultConfig struct {
	Path    string `mapstructure:"path"`
	Backend string `mapstructure:"backend"` // auto, file, sqlite
	Lock    bool   `mapstructure:"lock"`
}

// KDFConfig is applied when a vault is created. Existing vaults keep the
// parameters recorded in their header.
type KDFConfig struct {
	Name       string       `mapstructure:"name"`
	Iterations int          `mapstructure:"iterations"`
	Argon2     Argon2Config `mapstructure:"argon2"`
}

// Argon2Config holds the argon2id cost parameters.
type Argon2Config struct {
	MemoryMB    uint32 `mapstructure:"memory_mb"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
}

// GeneratorConfig sets the defaults for generated passwords.
type GeneratorConfig struct {
	Length  int  `mapstructure:"length"`
	Symbols bool `mapstructure:"symbols"`
}

// PolicyConfig controls master password checks on init and passwd.
type PolicyConfig struct {
	Enforce  bool `mapstructure:"enforce"`
	MinScore int  `mapstructure:"min_score"`
	HIBP     bool `mapstructure:"hibp"`
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultVaultPath returns $HOME/.pm/vault.json, or ./vault.json when no home is known.
func DefaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "vault.json"
	}
	return filepath.Join(home, ".pm", "vault.json")
}

// SetDefaults registers every key with its default value on v.
func SetDefaults(v *viper.Viper) {
	argon := krypto.DefaultArgon2Params()

	v.SetDefault("vault.path", DefaultVaultPath())
	v.SetDefault("vault.backend", store.KindAuto)
	v.SetDefault("vault.lock", true)
	v.SetDefault("kdf.name", krypto.KDFPBKDF2)
	v.SetDefault("kdf.iterations", krypto.DefaultPBKDF2Iterations)
	v.SetDefault("kdf.argon2.memory_mb", argon.MemoryMB)
	v.SetDefault("kdf.argon2.time", argon.Time)
	v.SetDefault("kdf.argon2.parallelism", argon.Parallelism)
	v.SetDefault("cipher", krypto.CipherAESGCM)
	v.SetDefault("generator.length", 16)
	v.SetDefault("generator.symbols", true)
	v.SetDefault("policy.enforce", true)
	v.SetDefault("policy.min_score", 3)
	v.SetDefault("policy.hibp", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", logging.FormatConsole)
}

// New returns a viper instance with defaults and environment lookup configured.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (explicit path, or pm.yaml in . and
// $HOME/.config/pm) into v and decodes the merged result.
// A missing default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// no SetConfigType: it would make viper read an extension-less
		// "pm" file, such as the binary itself, as the config
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pm"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// KDFParams converts the kdf section into derivation parameters for new vaults.
func (c *Config) KDFParams() krypto.KDFParams {
	if c.KDF.Name == krypto.KDFArgon2id {
		return krypto.KDFParams{
			Name:        krypto.KDFArgon2id,
			MemoryMB:    c.KDF.Argon2.MemoryMB,
			Time:        c.KDF.Argon2.Time,
			Parallelism: c.KDF.Argon2.Parallelism,
			KeyLen:      krypto.KeySize,
		}
	}
	return krypto.KDFParams{Name: c.KDF.Name, Iterations: c.KDF.Iterations, KeyLen: krypto.KeySize}
}

// ValidateOptions converts the policy section for auth.ValidateMasterPasswordAdvanced.
func (c *Config) ValidateOptions() auth.ValidateOptions {
	opts := auth.DefaultValidateOptions()
	opts.MinZXCVBNScore = c.Policy.MinScore
	opts.EnableHIBP = c.Policy.HIBP
	return opts
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vault.Path) == "" {
		return errors.New("vault.path is required")
	}
	switch c.Vault.Backend {
	case store.KindAuto, store.KindFile, store.KindSQLite:
	default:
		return fmt.Errorf("invalid vault.backend: %s", c.Vault.Backend)
	}
	if err := c.KDFParams().Validate(); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}
	if !krypto.SupportedCipher(c.Cipher) {
		return fmt.Errorf("invalid cipher: %s", c.Cipher)
	}
	if c.Generator.Length < auth.MinGeneratedLength || c.Generator.Length > auth.MaxGeneratedLength {
		return fmt.Errorf("generator.length must be between %d and %d", auth.MinGeneratedLength, auth.MaxGeneratedLength)
	}
	if c.Policy.MinScore < 0 || c.Policy.MinScore > 4 {
		return fmt.Errorf("policy.min_score must be between 0 and 4")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}
