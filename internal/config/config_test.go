package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.App.Port)
	assert.Equal(t, "k", c.JWT.Secret)
	assert.Equal(t, 30*24*60, c.JWT.ExpiresMin)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "mongodb://localhost:27017/skilllink", c.Mongo.FallbackURI)
	assert.True(t, c.Development())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  env: production\n  port: \"7000\"\njwt:\n  secret: fromfile\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", c.App.Port)
	assert.Equal(t, "fromfile", c.JWT.Secret)
	assert.False(t, c.Development())
}
