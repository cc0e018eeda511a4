package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoleSecretRoundTrip(t *testing.T) {
	blob, err := EncryptRoleSecret("sekret", "hunter2")
	require.NoError(t, err)

	got, err := DecryptRoleSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "sekret", got)
}

func TestDecryptRoleSecretWrongPasswordFails(t *testing.T) {
	blob, err := EncryptRoleSecret("sekret", "hunter2")
	require.NoError(t, err)

	_, err = DecryptRoleSecret(blob, "wrong")
	assert.Error(t, err)
}

func TestLoadRoleSecretPrefersRawSecret(t *testing.T) {
	got, err := LoadRoleSecret(SecretConfig{RawSecret: "sekret"})
	require.NoError(t, err)
	assert.Equal(t, "sekret", got)
}

func TestLoadRoleSecretErrorsWithNoSource(t *testing.T) {
	_, err := LoadRoleSecret(SecretConfig{})
	assert.Error(t, err)
}
