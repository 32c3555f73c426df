package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptToken("tok-abc123", "hunter2")
	require.NoError(t, err)

	got, err := DecryptToken(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc123", got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptToken("tok-abc123", "hunter2")
	require.NoError(t, err)

	_, err = DecryptToken(blob, "nope")
	assert.Error(t, err)
}

func TestEncryptRejectsEmptyInputs(t *testing.T) {
	_, err := EncryptToken("", "hunter2")
	assert.Error(t, err)

	_, err = EncryptToken("tok", "")
	assert.Error(t, err)
}

func TestLoadTokenResolutionOrder(t *testing.T) {
	// Raw token wins even when a file path is configured.
	tok, err := LoadToken(TokenConfig{RawToken: "raw", EncryptedTokenPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, "raw", tok)

	// Encrypted file path.
	blob, err := EncryptToken("from-file", "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	tok, err = LoadToken(TokenConfig{EncryptedTokenPath: path, TokenPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	// Nothing configured means anonymous.
	tok, err = LoadToken(TokenConfig{})
	require.NoError(t, err)
	assert.Empty(t, tok)
}
