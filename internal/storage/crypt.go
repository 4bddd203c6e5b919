package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecrypt is returned when stored content cannot be decrypted with the
// configured passphrase.
var ErrDecrypt = errors.New("failed to decrypt document")

const (
	cryptMagic      = "QWILLGCM"
	cryptSaltSize   = 16
	cryptIterations = 100000
)

// Encrypted wraps a backend and encrypts document content at rest with
// AES-GCM under a PBKDF2-derived key. Metadata is stored in the clear.
type Encrypted struct {
	Backend
	passphrase []byte
}

// NewEncrypted wraps b.
func NewEncrypted(b Backend, passphrase string) *Encrypted {
	return &Encrypted{Backend: b, passphrase: []byte(passphrase)}
}

func (e *Encrypted) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, cryptIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (e *Encrypted) Save(ctx context.Context, meta Meta, content string) error {
	// Format: magic + base64(salt(16) + nonce(12) + ciphertext + tag(16))
	salt := make([]byte, cryptSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := e.gcm(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(append(salt, nonce...), nonce, []byte(content), nil)
	return e.Backend.Save(ctx, meta, cryptMagic+base64.StdEncoding.EncodeToString(sealed))
}

func (e *Encrypted) Load(ctx context.Context, id string) (string, Meta, error) {
	stored, meta, err := e.Backend.Load(ctx, id)
	if err != nil {
		return "", Meta{}, err
	}
	encoded, ok := strings.CutPrefix(stored, cryptMagic)
	if !ok {
		return "", Meta{}, fmt.Errorf("%w: %s is not encrypted", ErrDecrypt, id)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", Meta{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(data) < cryptSaltSize+12+16 {
		return "", Meta{}, fmt.Errorf("%w: data too short", ErrDecrypt)
	}
	gcm, err := e.gcm(data[:cryptSaltSize])
	if err != nil {
		return "", Meta{}, err
	}
	nonce := data[cryptSaltSize : cryptSaltSize+gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, data[cryptSaltSize+gcm.NonceSize():], nil)
	if err != nil {
		return "", Meta{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), meta, nil
}
