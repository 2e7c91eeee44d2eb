package secure

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, k1, KeySize)

	k2, err := GenerateKey()
	require.NoError(t, err)

	// Fresh key per call, never reused
	assert.False(t, bytes.Equal(k1, k2), "two generated keys should differ")
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("compressed mri scan bytes")

	ciphertext, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_CiphertextsDiffer(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("same input")

	ct1, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	ct2, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	// Random nonce per call
	assert.False(t, bytes.Equal(ct1, ct2))
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	wrongKey, err := GenerateKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt([]byte("secret scan"), key)
	require.NoError(t, err)

	decrypted, err := Decrypt(ciphertext, wrongKey)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Nil(t, decrypted, "no bytes may be returned on integrity failure")
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt([]byte("secret scan"), key)
	require.NoError(t, err)

	// Flip one byte of the sealed payload
	tampered := make([]byte, len(ciphertext))
	copy(tampered, ciphertext)
	tampered[len(tampered)-1] ^= 0x01

	decrypted, err := Decrypt(tampered, key)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Nil(t, decrypted)
}

func TestDecrypt_TruncatedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = Decrypt([]byte{0x01, 0x02}, key)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestDecrypt_BadKeyLength(t *testing.T) {
	_, err := Decrypt([]byte("whatever"), []byte("short"))
	assert.Error(t, err)
}

func TestKeyEncoding_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	decoded, err := DecodeKey(EncodeKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestDecodeKey_Invalid(t *testing.T) {
	_, err := DecodeKey("not base64!!!")
	assert.Error(t, err)

	_, err = DecodeKey("c2hvcnQ=") // valid base64, wrong length
	assert.Error(t, err)
}
