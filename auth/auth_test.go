package auth_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/credvault/auth"
)

func TestGeneratePasswordLengthAndAlphabet(t *testing.T) {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tests := []struct {
		length  int
		symbols bool
		allowed string
	}{
		{4, false, letters},
		{16, true, letters + "!@#$%^&*()_-+=<>?"},
		{64, false, letters},
		{1024, true, letters + "!@#$%^&*()_-+=<>?"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%v", tt.length, tt.symbols), func(t *testing.T) {
			pw, err := auth.GeneratePassword(tt.length, tt.symbols)
			require.NoError(t, err)
			assert.Len(t, pw, tt.length)
			for _, r := range pw {
				assert.Contains(t, tt.allowed, string(r))
			}
		})
	}
}

func TestGeneratePasswordCoversClasses(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := auth.GeneratePassword(4, true)
		require.NoError(t, err)
		assert.True(t, strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz"), pw)
		assert.True(t, strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), pw)
		assert.True(t, strings.ContainsAny(pw, "0123456789"), pw)
		assert.True(t, strings.ContainsAny(pw, "!@#$%^&*()_-+=<>?"), pw)
	}
}

func TestGeneratePasswordNoSymbols(t *testing.T) {
	pw, err := auth.GeneratePassword(200, false)
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(pw, "!@#$%^&*()_-+=<>?"))
}

func TestGeneratePasswordInvalidLength(t *testing.T) {
	for _, n := range []int{-1, 0, 3, 1025} {
		_, err := auth.GeneratePassword(n, true)
		assert.ErrorIs(t, err, auth.ErrInvalidLength, "length %d", n)
	}
}

func TestGeneratePasswordIsRandom(t *testing.T) {
	a, err := auth.GeneratePassword(32, true)
	require.NoError(t, err)
	b, err := auth.GeneratePassword(32, true)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidateMasterPassword(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		ok   bool
	}{
		{"short", "Ab1!", false},
		{"no upper", "lowercase-only-1", false},
		{"no digit", "NoDigitsHere!!", false},
		{"no special", "NoSpecial12345", false},
		{"ok", "Correct-Horse-42", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateMasterPassword(tt.pw)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, auth.ErrWeakPassword)
			}
		})
	}
}

func TestStrength(t *testing.T) {
	weak := auth.Strength("password")
	strong := auth.Strength("vT7#qLz!9pW@xR2m&Kd4")
	assert.Equal(t, 0, weak.Score)
	assert.Equal(t, 4, strong.Score)
	assert.Greater(t, strong.Entropy, weak.Entropy)
	assert.NotEmpty(t, strong.CrackTime)
	assert.Equal(t, "very strong", strong.Label())
}

func hibpServer(t *testing.T, pw string, count int) *httptest.Server {
	t.Helper()
	sum := sha1.Sum([]byte(pw))
	full := strings.ToUpper(hex.EncodeToString(sum[:]))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/range/"+full[:5] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n")
		fmt.Fprintf(w, "%s:0\r\n", strings.Repeat("F", 35))
		if count > 0 {
			fmt.Fprintf(w, "%s:%d\r\n", strings.ToLower(full[5:]), count)
		}
	}))
}

func TestHIBPClientCheck(t *testing.T) {
	srv := hibpServer(t, "hunter2", 1337)
	defer srv.Close()

	c := &auth.HIBPClient{BaseURL: srv.URL + "/range", HTTP: srv.Client()}
	res, err := c.Check(context.Background(), "hunter2")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 1337, res.Count)

	res, err = c.Check(context.Background(), "not-in-the-list")
	require.Error(t, err)
	assert.False(t, res.Found)
}

func TestHIBPClientNotFound(t *testing.T) {
	srv := hibpServer(t, "Correct-Horse-42", 0)
	defer srv.Close()

	c := &auth.HIBPClient{BaseURL: srv.URL + "/range/", HTTP: srv.Client()}
	res, err := c.Check(context.Background(), "Correct-Horse-42")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestValidateMasterPasswordAdvanced(t *testing.T) {
	const pw = "vT7#qLz!9pW@xR2m&Kd4"
	srv := hibpServer(t, pw, 3)
	defer srv.Close()

	opts := auth.DefaultValidateOptions()
	assert.NoError(t, auth.ValidateMasterPasswordAdvanced(context.Background(), pw, opts))

	err := auth.ValidateMasterPasswordAdvanced(context.Background(), "Password123!", opts)
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	opts.EnableHIBP = true
	opts.HIBP = &auth.HIBPClient{BaseURL: srv.URL + "/range", HTTP: srv.Client()}
	err = auth.ValidateMasterPasswordAdvanced(context.Background(), pw, opts)
	assert.ErrorIs(t, err, auth.ErrBreachedPassword)
}

func TestValidateMasterPasswordAdvancedFailOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := auth.DefaultValidateOptions()
	opts.EnableHIBP = true
	opts.HIBP = &auth.HIBPClient{BaseURL: srv.URL, HTTP: srv.Client()}

	const pw = "vT7#qLz!9pW@xR2m&Kd4"
	assert.NoError(t, auth.ValidateMasterPasswordAdvanced(context.Background(), pw, opts))

	opts.FailOpen = false
	assert.Error(t, auth.ValidateMasterPasswordAdvanced(context.Background(), pw, opts))
}
