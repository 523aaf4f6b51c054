package secretref

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/pkg/kms"
)

var ErrScrubbed = errors.New("secret has been scrubbed")

const redacted = "[REDACTED]"

// SecretRef wraps a tenant credential at rest. New writes are always sealed
// with the key manager; a plaintext fallback remains readable for rows written
// before encryption was introduced, and is re-sealed on the next write.
type SecretRef struct {
	ciphertext []byte
	legacy     string
}

// Seal encrypts a plaintext credential for storage.
func Seal(km kms.KeyManager, plaintext string) (SecretRef, error) {
	ciphertext, err := km.Encrypt([]byte(plaintext))
	if err != nil {
		return SecretRef{}, errors.Wrap(err, "seal secret")
	}
	return SecretRef{ciphertext: ciphertext}, nil
}

// FromStored rehydrates a SecretRef from persisted columns. Either side may be
// empty; the encrypted form wins when both are present.
func FromStored(ciphertext []byte, legacy string) SecretRef {
	return SecretRef{ciphertext: ciphertext, legacy: legacy}
}

// Reveal returns the plaintext credential. The caller must not retain the
// value beyond the operation that needed it.
func (s SecretRef) Reveal(km kms.KeyManager) (string, error) {
	if len(s.ciphertext) > 0 {
		plaintext, err := km.Decrypt(s.ciphertext)
		if err != nil {
			return "", errors.Wrap(err, "open secret")
		}
		return string(plaintext), nil
	}
	if s.legacy != "" {
		return s.legacy, nil
	}
	return "", ErrScrubbed
}

func (s SecretRef) Empty() bool {
	return len(s.ciphertext) == 0 && s.legacy == ""
}

// Encrypted reports whether the stored form is sealed. Legacy plaintext rows
// return false until rewritten.
func (s SecretRef) Encrypted() bool {
	return len(s.ciphertext) > 0
}

// Ciphertext exposes the sealed bytes for persistence. Nil for legacy rows.
func (s SecretRef) Ciphertext() []byte {
	if len(s.ciphertext) == 0 {
		return nil
	}
	out := make([]byte, len(s.ciphertext))
	copy(out, s.ciphertext)
	return out
}

// StoredLegacy exposes the unsealed plaintext for persistence of rows that
// predate encryption. Empty once the row has been sealed.
func (s SecretRef) StoredLegacy() string {
	if len(s.ciphertext) > 0 {
		return ""
	}
	return s.legacy
}

// Scrub zeroes the secret in place. Used on tenant deletion so the credential
// is irrecoverable even from a memory dump taken afterwards.
func (s *SecretRef) Scrub() {
	for i := range s.ciphertext {
		s.ciphertext[i] = 0
	}
	s.ciphertext = nil
	s.legacy = ""
}

func (s SecretRef) String() string {
	if s.Empty() {
		return ""
	}
	return redacted
}

func (s SecretRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
