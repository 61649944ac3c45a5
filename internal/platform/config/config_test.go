package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "registry-prod")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.StoreMode)
	assert.Equal(t, "wrap.mints", cfg.KafkaTopic)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestFromEnvRequiresRegistryID(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvPostgresRequiresURL(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "registry-prod")
	t.Setenv("WRAP_STORE", "postgres")

	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("WRAP_POSTGRES_URL", "postgres://localhost/wraps")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreMode)
}

func TestFromEnvRejectsUnknownStore(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "registry-prod")
	t.Setenv("WRAP_STORE", "cassandra")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvParsesAdminKeys(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "registry-prod")
	t.Setenv("WRAP_ADMIN_KEYS", "ops=aabb,backup=ccdd")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ops": "aabb", "backup": "ccdd"}, cfg.AdminKeys)
}

func TestFromEnvRejectsMalformedAdminKeys(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "registry-prod")
	t.Setenv("WRAP_ADMIN_KEYS", "no-equals-sign")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvParsesBrokerList(t *testing.T) {
	t.Setenv("WRAP_REGISTRY_ID", "registry-prod")
	t.Setenv("WRAP_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}
