package kms

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrSecretRefEmpty             = errors.New("secret ref is empty")
	ErrSecretRefUnsupportedScheme = errors.New("unsupported secret ref scheme")
	ErrSecretRefNotFound          = errors.New("secret ref not found")
	ErrInvalidKey                 = errors.New("master key must be 32 bytes")
	ErrCiphertextTooShort         = errors.New("ciphertext too short")
	ErrDecryptFailed              = errors.New("decryption failed")
)

// KeyManager seals and opens small secrets (tenant connection strings) with a
// master key that never leaves the process.
type KeyManager interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// ResolveRef dereferences an ENV: or FILE: secret reference. The master key is
// always configured by reference so the key material stays out of config files
// and process listings.
func ResolveRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrSecretRefEmpty
	}

	switch {
	case strings.HasPrefix(ref, "ENV:"):
		name := strings.TrimSpace(strings.TrimPrefix(ref, "ENV:"))
		if name == "" {
			return "", ErrSecretRefEmpty
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", ErrSecretRefNotFound
		}
		return strings.TrimSpace(v), nil
	case strings.HasPrefix(ref, "FILE:"):
		path := strings.TrimSpace(strings.TrimPrefix(ref, "FILE:"))
		if path == "" {
			return "", ErrSecretRefEmpty
		}
		if !filepath.IsAbs(path) {
			return "", errors.New("FILE: secret ref must be an absolute path")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrap(err, "read secret ref file")
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return "", ErrSecretRefUnsupportedScheme
	}
}

type secretboxManager struct {
	key [32]byte
}

// NewFromRef builds a KeyManager from a secret reference pointing at a
// base64-encoded 32-byte key.
func NewFromRef(ref string) (KeyManager, error) {
	encoded, err := ResolveRef(ref)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode master key")
	}
	return NewWithKey(raw)
}

func NewWithKey(raw []byte) (KeyManager, error) {
	if len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	m := &secretboxManager{}
	copy(m.key[:], raw)
	return m, nil
}

func (m *secretboxManager) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &m.key), nil
}

func (m *secretboxManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24+secretbox.Overhead {
		return nil, ErrCiphertextTooShort
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &m.key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
