package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Encryptor provides encryption and decryption for sensitive data.
// Used to encrypt gateway API keys and credentials before storing in the
// database. Uses AES-256-GCM for authenticated encryption.
type Encryptor interface {
	// Encrypt encrypts plaintext and returns base64-encoded ciphertext.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt decrypts base64-encoded ciphertext and returns plaintext.
	// Verifies the authentication tag to detect tampering.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncryptor implements Encryptor using AES-256-GCM. The key must be
// 32 bytes and come from an environment variable or secrets manager, never
// from the repository.
type AESEncryptor struct {
	key []byte
}

// NewAESEncryptor creates an AES-256-GCM encryptor from a 32-byte key.
func NewAESEncryptor(key []byte) (*AESEncryptor, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	return &AESEncryptor{key: key}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM. The output is
// base64(nonce + ciphertext + tag) with a fresh random nonce per call.
func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return []byte(encoded), nil
}

// Decrypt decrypts base64(nonce + ciphertext + tag) produced by Encrypt.
// Fails on a wrong key or any tampering with the ciphertext.
func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(ciphertext))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(decoded) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := decoded[:gcm.NonceSize()], decoded[gcm.NonceSize():]

	return gcm.Open(nil, nonce, sealed, nil)
}

// GenerateKey generates a cryptographically secure 32-byte key for AES-256.
// Use once at setup, then store the encoded key securely.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncodeKeyBase64 encodes an encryption key as base64 for storage in env vars.
func EncodeKeyBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKeyBase64 decodes a base64-encoded encryption key from env vars.
func DecodeKeyBase64(encodedKey string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, errors.New("invalid key length after base64 decode")
	}
	return key, nil
}
