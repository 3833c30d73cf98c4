package vault

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

var testConfig = clowddav.Config{
	BaseURL:  "https://dav.example.com/calendars/alice/",
	Username: "alice",
	Password: "s3cret",
}

func newTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	return New(path), path
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(testConfig, "master"))

	got, err := v.Retrieve("master")
	require.NoError(t, err)
	assert.Equal(t, testConfig, got)
}

func TestWrongSecretDistinctFromEmptyVault(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.Retrieve("master")
	assert.True(t, errors.Is(err, ErrNoCredentials), "got %v", err)

	require.NoError(t, v.Store(testConfig, "master"))
	_, err = v.Retrieve("wrong")
	assert.True(t, errors.Is(err, ErrDecryptFailed), "got %v", err)
}

func TestBlobHoldsNoPlaintext(t *testing.T) {
	v, path := newTestVault(t)
	require.NoError(t, v.Store(testConfig, "master"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), testConfig.Password)
	assert.NotContains(t, string(data), testConfig.Username)

	var b blob
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, blobVersion, b.Version)
	assert.Len(t, b.Salt, kdfSaltLength)
	assert.NotEmpty(t, b.Nonce)
	assert.NotEmpty(t, b.Ciphertext)
}

func TestStoreReplacesBlob(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(testConfig, "old-secret"))

	updated := testConfig
	updated.Password = "rotated"
	require.NoError(t, v.Store(updated, "new-secret"))

	_, err := v.Retrieve("old-secret")
	assert.True(t, errors.Is(err, ErrDecryptFailed), "got %v", err)

	got, err := v.Retrieve("new-secret")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Password)
}

func TestHasAndClear(t *testing.T) {
	v, _ := newTestVault(t)
	assert.False(t, v.Has())

	require.NoError(t, v.Store(testConfig, "master"))
	assert.True(t, v.Has())

	require.NoError(t, v.Clear())
	assert.False(t, v.Has())

	// Clearing twice is a no-op.
	assert.NoError(t, v.Clear())
}

func TestRejectsUnknownBlobVersion(t *testing.T) {
	v, path := newTestVault(t)
	require.NoError(t, v.Store(testConfig, "master"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var b blob
	require.NoError(t, json.Unmarshal(data, &b))
	b.Version = 99
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = v.Retrieve("master")
	assert.ErrorContains(t, err, "unsupported blob version")
}
