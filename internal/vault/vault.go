// Package vault owns symmetric encryption of stored platform credentials.
// Callers outside this package only ever see plaintext tokens in memory.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoKey means the process was started without an encryption key.
	// This is a configuration error, never a silent passthrough.
	ErrNoKey = errors.New("vault: encryption key is not configured")

	// ErrDecryptFailed means a stored value could not be decrypted. It is a
	// hard error: an undecryptable token is never treated as plaintext.
	ErrDecryptFailed = errors.New("vault: unable to decrypt value")
)

type Vault struct {
	key []byte
}

// New builds a vault from the process-wide key. The key must be 16, 24 or 32
// bytes (AES-128/192/256).
func New(key string) (*Vault, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("vault: key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	return &Vault{key: []byte(key)}, nil
}

// Encrypt seals plaintext with AES-GCM and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aesGCM, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// Decrypt opens a value produced by Encrypt. Any failure surfaces as
// ErrDecryptFailed.
func (v *Vault) Decrypt(encrypted string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryptFailed
	}

	aesGCM, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", ErrDecryptFailed
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether value is already a sealed vault value. Used on
// the write path only, so tokens are not encrypted twice.
func (v *Vault) IsEncrypted(value string) bool {
	if value == "" {
		return false
	}
	_, err := v.Decrypt(value)
	return err == nil
}

// EncryptIfNeeded encrypts value unless it is already encrypted. Empty values
// pass through unchanged.
func (v *Vault) EncryptIfNeeded(value string) (string, error) {
	if value == "" || v.IsEncrypted(value) {
		return value, nil
	}
	return v.Encrypt(value)
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
