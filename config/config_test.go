package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("GENESIS_TEST_INT", "12")
	t.Setenv("GENESIS_TEST_BOOL", " yes ")

	assert.Equal(t, "fallback", getEnv("GENESIS_TEST_UNSET", "fallback"))
	assert.Equal(t, 12, getEnvInt("GENESIS_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("GENESIS_TEST_UNSET", 1))
	assert.False(t, getEnvBool("GENESIS_TEST_BOOL", false), "only strconv booleans are accepted")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("KV_DRIVER", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("DISCOVER_LIMIT", "not a number")

	cfg := Load()
	assert.Equal(t, ":8088", cfg.Addr())
	assert.Equal(t, "redis", cfg.KVDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 10, cfg.DiscoverLimit, "unparsable ints fall back to the default")
}
