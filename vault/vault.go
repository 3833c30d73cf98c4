// Package vault encrypts connection credentials under a user-supplied
// master secret. The blob on disk is versioned JSON holding the PBKDF2
// salt, the AES-GCM nonce and the ciphertext; a wrong secret fails
// distinguishably from an empty vault.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

var (
	// ErrNoCredentials means nothing has been stored yet.
	ErrNoCredentials = errors.New("vault: no credentials stored")

	// ErrDecryptFailed means the stored blob exists but the master secret
	// does not decrypt it. Almost always a wrong password.
	ErrDecryptFailed = errors.New("vault: decryption failed, wrong master secret")
)

const (
	blobVersion   = 1
	kdfIterations = 120_000
	kdfKeyLength  = 32
	kdfSaltLength = 16
)

type blob struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

// Vault stores one encrypted credential blob at a fixed path.
type Vault struct {
	mu   sync.Mutex
	path string
}

// New creates a vault backed by the given file path.
func New(path string) *Vault {
	return &Vault{path: path}
}

func deriveKey(masterSecret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(masterSecret), salt, kdfIterations, kdfKeyLength, sha256.New)
}

// Store encrypts the config under the master secret, replacing any
// previous blob.
func (v *Vault) Store(config clowddav.Config, masterSecret string) error {
	plaintext, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("vault: failed to marshal config: %w", err)
	}

	salt := make([]byte, kdfSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("vault: failed to generate salt: %w", err)
	}

	aead, err := newAEAD(masterSecret, salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("vault: failed to generate nonce: %w", err)
	}

	b := blob{
		Version:    blobVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("vault: failed to marshal blob: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("vault: failed to create directory: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("vault: failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vault: failed to replace blob: %w", err)
	}
	return nil
}

// Retrieve decrypts the stored config. Returns ErrNoCredentials when the
// vault is empty and ErrDecryptFailed on a wrong master secret.
func (v *Vault) Retrieve(masterSecret string) (clowddav.Config, error) {
	v.mu.Lock()
	data, err := os.ReadFile(v.path)
	v.mu.Unlock()
	if os.IsNotExist(err) {
		return clowddav.Config{}, ErrNoCredentials
	}
	if err != nil {
		return clowddav.Config{}, fmt.Errorf("vault: failed to read blob: %w", err)
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return clowddav.Config{}, fmt.Errorf("vault: corrupt blob: %w", err)
	}
	if b.Version != blobVersion {
		return clowddav.Config{}, fmt.Errorf("vault: unsupported blob version %d", b.Version)
	}

	aead, err := newAEAD(masterSecret, b.Salt)
	if err != nil {
		return clowddav.Config{}, err
	}

	plaintext, err := aead.Open(nil, b.Nonce, b.Ciphertext, nil)
	if err != nil {
		return clowddav.Config{}, ErrDecryptFailed
	}

	var config clowddav.Config
	if err := json.Unmarshal(plaintext, &config); err != nil {
		return clowddav.Config{}, fmt.Errorf("vault: corrupt plaintext: %w", err)
	}
	return config, nil
}

// Has reports whether a credential blob exists, without decrypting it.
func (v *Vault) Has() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := os.Stat(v.path)
	return err == nil
}

// Clear removes the stored blob. Clearing an empty vault is a no-op.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := os.Remove(v.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: failed to remove blob: %w", err)
	}
	return nil
}

func newAEAD(masterSecret string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(masterSecret, salt))
	if err != nil {
		return nil, fmt.Errorf("vault: failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to init GCM: %w", err)
	}
	return aead, nil
}
