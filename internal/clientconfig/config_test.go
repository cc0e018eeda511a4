package clientconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Endpoint = "wss://rtm.example.com"
	cfg.AppKey = "appkey123"
	return cfg
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPreSpecifiedV2Path(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = "wss://rtm.example.com/v2"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownCodec(t *testing.T) {
	cfg := validConfig()
	cfg.Codec = "protobuf"
	assert.Error(t, cfg.Validate())
}

func TestValidateAllowsRoleWithoutSecretPath(t *testing.T) {
	// Validate cannot see a rtmclient.WithRawRoleSecret option supplied at
	// New() time, so it must not reject Role set without RoleSecretPath --
	// resolving the actual secret source is auth.LoadRoleSecret's job.
	cfg := validConfig()
	cfg.Role = "admin"
	assert.NoError(t, cfg.Validate())

	cfg.RoleSecretPath = "/etc/rtmclient/role_secret"
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfigHidesSecretsWithoutMutatingOriginal(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "hunter2", cfg.Postgres.Password, "original config must not be mutated")
}
