package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/credvault/krypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	chdirForTest(t, t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultVaultPath(), cfg.Vault.Path)
	assert.Equal(t, "auto", cfg.Vault.Backend)
	assert.True(t, cfg.Vault.Lock)
	assert.Equal(t, krypto.DefaultPBKDF2Params(), cfg.KDFParams())
	assert.Equal(t, krypto.CipherAESGCM, cfg.Cipher)
	assert.Equal(t, 16, cfg.Generator.Length)
	assert.True(t, cfg.Generator.Symbols)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 3, cfg.ValidateOptions().MinZXCVBNScore)
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pm"), []byte("\x7fELF\x02\x01\x01\x00: not: yaml"), 0o700))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Generator.Length)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pm.yaml"), []byte("generator:\n  length: 20\n"), 0o600))
	cfg, err = Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Generator.Length)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
vault:
  path: /tmp/other.db
  backend: sqlite
  lock: false
kdf:
  name: argon2id
  argon2:
    memory_mb: 32
    time: 2
    parallelism: 2
cipher: xchacha20-poly1305
generator:
  length: 24
  symbols: false
log:
  level: debug
  format: json
`)
	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Vault.Path)
	assert.Equal(t, "sqlite", cfg.Vault.Backend)
	assert.False(t, cfg.Vault.Lock)
	assert.Equal(t, krypto.KDFParams{
		Name: krypto.KDFArgon2id, MemoryMB: 32, Time: 2, Parallelism: 2, KeyLen: krypto.KeySize,
	}, cfg.KDFParams())
	assert.Equal(t, krypto.CipherXChaCha20, cfg.Cipher)
	assert.Equal(t, 24, cfg.Generator.Length)
	assert.False(t, cfg.Generator.Symbols)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "vault:\n  path: /from/file.json\n")
	t.Setenv("PM_VAULT_PATH", "/from/env.json")
	t.Setenv("PM_KDF_ITERATIONS", "200000")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.json", cfg.Vault.Path)
	assert.Equal(t, 200000, cfg.KDF.Iterations)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"low iterations": "kdf:\n  iterations: 1000\n",
		"unknown kdf":    "kdf:\n  name: scrypt\n",
		"unknown cipher": "cipher: rot13\n",
		"backend":        "vault:\n  backend: s3\n",
		"short length":   "generator:\n  length: 2\n",
		"log level":      "log:\n  level: loud\n",
		"log format":     "log:\n  format: xml\n",
		"min score":      "policy:\n  min_score: 9\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
