package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoleSecretHashFixedVector checks the vector from spec.md section 8:
// for secret="sekret", nonce="n0nce", the hash must equal
// base64(HMAC-MD5("sekret", "n0nce")).
func TestRoleSecretHashFixedVector(t *testing.T) {
	got := RoleSecretHash("sekret", "n0nce")
	assert.Equal(t, "SJoKafBz8fMIA8t8OWYAXw==", got)
}

func TestRoleSecretDelegateFlow(t *testing.T) {
	d := RoleSecretDelegate{Role: "admin", Secret: "sekret"}

	step1 := d.Start()
	hs, ok := step1.(Handshake)
	require.True(t, ok)
	assert.Equal(t, "role_secret", hs.Method)
	assert.Equal(t, "admin", hs.Data["role"])

	step2 := hs.Next(HandshakeOK{Data: map[string]interface{}{"nonce": "n0nce"}})
	auth, ok := step2.(Authenticate)
	require.True(t, ok)
	assert.Equal(t, "SJoKafBz8fMIA8t8OWYAXw==", auth.Credentials["hash"])

	step3 := auth.Next(AuthenticateOK{})
	_, ok = step3.(Done)
	assert.True(t, ok)
}

func TestRoleSecretDelegateMissingNonce(t *testing.T) {
	d := RoleSecretDelegate{Role: "admin", Secret: "sekret"}
	hs := d.Start().(Handshake)
	step2 := hs.Next(HandshakeOK{Data: map[string]interface{}{}})
	_, ok := step2.(Error)
	assert.True(t, ok)
}
