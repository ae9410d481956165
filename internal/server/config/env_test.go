package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "10m")
	t.Setenv("AUTH_REVOKE_FAMILY_ON_REUSE", "false")
	t.Setenv("AUTH_HASH_WORKERS", "3")
	t.Setenv("AUTH_ARGON2_MEMORY", "32768")
	t.Setenv("AUTH_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("AUTH_GENERATE_KEYS", "true")
	t.Setenv("GRPC_ADDR", ":1") // no prefix, ignored

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
	assert.False(t, cfg.RevokeFamilyOnReuse)
	assert.Equal(t, 3, cfg.HashWorkers)
	assert.Equal(t, uint32(32768), cfg.Argon2Memory)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.True(t, cfg.GenerateKeys)
}

func Test_parseEnv_BadValuePanics(t *testing.T) {
	t.Setenv("AUTH_HASH_WORKERS", "many")

	var cfg Config
	require.Panics(t, func() { parseEnv(&cfg) })
}
