package kms_test

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/pkg/kms"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestKeyManager_RoundTrip(t *testing.T) {
	t.Parallel()
	km, err := kms.NewWithKey(testKey())
	require.NoError(t, err)

	plaintext := []byte("postgres://tenant:pw@db-07:5432/acme_corp")
	ciphertext, err := km.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "acme_corp")

	got, err := km.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestKeyManager_NoncesDiffer(t *testing.T) {
	t.Parallel()
	km, err := kms.NewWithKey(testKey())
	require.NoError(t, err)

	a, err := km.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := km.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyManager_DecryptWrongKey(t *testing.T) {
	t.Parallel()
	km1, err := kms.NewWithKey(testKey())
	require.NoError(t, err)
	km2, err := kms.NewWithKey(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)

	ciphertext, err := km1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = km2.Decrypt(ciphertext)
	require.ErrorIs(t, err, kms.ErrDecryptFailed)
}

func TestKeyManager_DecryptTruncated(t *testing.T) {
	t.Parallel()
	km, err := kms.NewWithKey(testKey())
	require.NoError(t, err)

	_, err = km.Decrypt([]byte("short"))
	require.ErrorIs(t, err, kms.ErrCiphertextTooShort)
}

func TestNewWithKey_RejectsBadLength(t *testing.T) {
	t.Parallel()
	_, err := kms.NewWithKey([]byte("too short"))
	require.ErrorIs(t, err, kms.ErrInvalidKey)
}

func TestNewFromRef_Env(t *testing.T) {
	t.Setenv("CP_TEST_MASTER_KEY", base64.StdEncoding.EncodeToString(testKey()))

	km, err := kms.NewFromRef("ENV:CP_TEST_MASTER_KEY")
	require.NoError(t, err)

	ciphertext, err := km.Encrypt([]byte("x"))
	require.NoError(t, err)
	got, err := km.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestResolveRef_Errors(t *testing.T) {
	t.Parallel()
	_, err := kms.ResolveRef("")
	require.ErrorIs(t, err, kms.ErrSecretRefEmpty)

	_, err = kms.ResolveRef("VAULT:foo")
	require.ErrorIs(t, err, kms.ErrSecretRefUnsupportedScheme)

	_, err = kms.ResolveRef("ENV:CP_DEFINITELY_NOT_SET")
	require.ErrorIs(t, err, kms.ErrSecretRefNotFound)

	_, err = kms.ResolveRef("FILE:relative/path")
	require.Error(t, err)
}
