package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNPrefersExplicitValue(t *testing.T) {
	cfg := ClientConfig{DSN: "postgres://explicit/dsn"}
	assert.Equal(t, "postgres://explicit/dsn", DSN(cfg))
}

func TestDSNBuildsFromPartsWithDefaults(t *testing.T) {
	cfg := ClientConfig{Host: "db.internal", Database: "rtmclient", User: "rtm", Password: "pw"}
	got := DSN(cfg)
	assert.Equal(t, "postgres://rtm:pw@db.internal:5432/rtmclient?sslmode=disable", got)
}

func TestDSNHonoursExplicitPortAndSSLMode(t *testing.T) {
	cfg := ClientConfig{Host: "db.internal", Port: 6543, Database: "rtmclient", User: "rtm", Password: "pw", SSLMode: "require"}
	got := DSN(cfg)
	assert.Equal(t, "postgres://rtm:pw@db.internal:6543/rtmclient?sslmode=require", got)
}
