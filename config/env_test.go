package config

import (
	"crypto/tls"
	"testing"

	"github.com/origami-state/osm/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConfig_ENV(t *testing.T) {
	t.Setenv("OSM_STORE_NAME", "app")
	t.Setenv("OSM_STORE_INITIAL_FILE", "./initial.json")
	t.Setenv("OSM_STORE_PERSIST_TIMEOUT", "12")
	t.Setenv("OSM_STORE_SKIP_UNCHANGED", "true")
	t.Setenv("OSM_STORE_LOG_LEVEL", "debug")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.Equal(t, "app", conf.Store.Name)
	assert.Equal(t, "./initial.json", conf.Store.InitialFile)
	assert.Equal(t, 12, conf.Store.PersistTimeout)
	assert.True(t, conf.Store.SkipUnchanged)
	assert.Equal(t, log.Debug, conf.Store.Log.GetLevel())
}

func TestRedisConfig_ENV(t *testing.T) {
	t.Setenv("OSM_STORAGE_REDIS_ENABLED", "true")
	t.Setenv("OSM_STORAGE_REDIS_DB", "1")
	t.Setenv("OSM_STORAGE_REDIS_PASSWORD", "pass")
	t.Setenv("OSM_STORAGE_REDIS_USER", "user")
	t.Setenv("OSM_STORAGE_REDIS_ADDRESSES", `["addr1", "addr2"]`)
	t.Setenv("OSM_STORAGE_REDIS_TLS_ENABLED", "true")
	t.Setenv("OSM_STORAGE_REDIS_TLS_MIN_VERSION", "1.1")
	t.Setenv("OSM_STORAGE_REDIS_TLS_SERVER_NAME", "serv")
	t.Setenv("OSM_STORAGE_REDIS_TLS_CERTIFICATES", `[{"key":"./key1","cert":"./cert1"},{"key":"./key2","cert":"./cert2"}]`)

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.True(t, conf.Storage.Redis.Enabled)
	assert.Equal(t, 1, conf.Storage.Redis.DB)
	assert.Equal(t, "pass", conf.Storage.Redis.Password)
	assert.Equal(t, "user", conf.Storage.Redis.User)
	assert.Equal(t, []string{"addr1", "addr2"}, conf.Storage.Redis.Addresses)
	assert.True(t, conf.Storage.Redis.Tls.Enabled)
	assert.Equal(t, tls.VersionTLS11, int(conf.Storage.Redis.Tls.GetVersion()))
	assert.Equal(t, "serv", conf.Storage.Redis.Tls.ServerName)
	assert.Equal(t, "./cert1", conf.Storage.Redis.Tls.Certificates[0].Cert)
	assert.Equal(t, "./key1", conf.Storage.Redis.Tls.Certificates[0].Key)
	assert.Equal(t, "./cert2", conf.Storage.Redis.Tls.Certificates[1].Cert)
	assert.Equal(t, "./key2", conf.Storage.Redis.Tls.Certificates[1].Key)
}

func TestMongoDbConfig_ENV(t *testing.T) {
	t.Setenv("OSM_STORAGE_MONGODB_ENABLED", "true")
	t.Setenv("OSM_STORAGE_MONGODB_URL", "url")
	t.Setenv("OSM_STORAGE_MONGODB_DATABASE", "db")
	t.Setenv("OSM_STORAGE_MONGODB_COLLECTION", "coll")
	t.Setenv("OSM_STORAGE_MONGODB_TLS_ENABLED", "true")
	t.Setenv("OSM_STORAGE_MONGODB_TLS_MIN_VERSION", "1.3")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.True(t, conf.Storage.MongoDb.Enabled)
	assert.Equal(t, "url", conf.Storage.MongoDb.Url)
	assert.Equal(t, "db", conf.Storage.MongoDb.Database)
	assert.Equal(t, "coll", conf.Storage.MongoDb.Collection)
	assert.True(t, conf.Storage.MongoDb.Tls.Enabled)
	assert.Equal(t, tls.VersionTLS13, int(conf.Storage.MongoDb.Tls.GetVersion()))
}

func TestDynamoDbConfig_ENV(t *testing.T) {
	t.Setenv("OSM_STORAGE_DYNAMODB_ENABLED", "true")
	t.Setenv("OSM_STORAGE_DYNAMODB_TABLE", "table")
	t.Setenv("OSM_STORAGE_DYNAMODB_URL", "http://localhost:8000")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.True(t, conf.Storage.DynamoDb.Enabled)
	assert.Equal(t, "table", conf.Storage.DynamoDb.Table)
	assert.Equal(t, "http://localhost:8000", conf.Storage.DynamoDb.Url)
}

func TestFileConfig_ENV(t *testing.T) {
	t.Setenv("OSM_STORAGE_FILE_ENABLED", "true")
	t.Setenv("OSM_STORAGE_FILE_DIR", "/tmp/osm")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.True(t, conf.Storage.File.Enabled)
	assert.Equal(t, "/tmp/osm", conf.Storage.File.Dir)
	assert.True(t, conf.Storage.IsSet())
}

func TestDiagConfig_ENV(t *testing.T) {
	t.Setenv("OSM_DIAG_PORT", "8091")
	t.Setenv("OSM_DIAG_ENABLED", "true")
	t.Setenv("OSM_DIAG_STATUS_ENABLED", "false")
	t.Setenv("OSM_DIAG_METRICS_ENABLED", "true")
	t.Setenv("OSM_DIAG_METRICS_PROMETHEUS_ENABLED", "false")
	t.Setenv("OSM_DIAG_METRICS_OTLP_ENABLED", "true")
	t.Setenv("OSM_DIAG_METRICS_OTLP_PROTOCOL", "https")
	t.Setenv("OSM_DIAG_METRICS_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OSM_DIAG_TRACES_ENABLED", "true")
	t.Setenv("OSM_DIAG_TRACES_OTLP_ENABLED", "true")
	t.Setenv("OSM_DIAG_TRACES_OTLP_PROTOCOL", "grpc")
	t.Setenv("OSM_DIAG_TRACES_OTLP_ENDPOINT", "collector:4317")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.Equal(t, 8091, conf.Diag.Port)
	assert.True(t, conf.Diag.Enabled)
	assert.False(t, conf.Diag.IsStatusEnabled())
	assert.True(t, conf.Diag.IsMetricsEnabled())
	assert.False(t, conf.Diag.IsPrometheusExporterEnabled())
	assert.True(t, conf.Diag.Metrics.Otlp.Enabled)
	assert.Equal(t, "https", conf.Diag.Metrics.Otlp.Protocol)
	assert.Equal(t, "collector:4318", conf.Diag.Metrics.Otlp.Endpoint)
	assert.True(t, conf.Diag.IsTracesEnabled())
	assert.Equal(t, "grpc", conf.Diag.Traces.Otlp.Protocol)
	assert.Equal(t, "collector:4317", conf.Diag.Traces.Otlp.Endpoint)
}

func TestLogConfig_ENV(t *testing.T) {
	t.Setenv("OSM_LOG_LEVEL", "error")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.Equal(t, log.Error, conf.Log.GetLevel())
	assert.Equal(t, log.Error, conf.Store.Log.GetLevel())
	assert.Equal(t, log.Error, conf.Storage.Log.GetLevel())
}

func TestConfig_ENV_Invalid_Values_Ignored(t *testing.T) {
	t.Setenv("OSM_STORE_PERSIST_TIMEOUT", "abc")
	t.Setenv("OSM_STORAGE_REDIS_ADDRESSES", "not-json")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)

	assert.Equal(t, 5, conf.Store.PersistTimeout)
	assert.Equal(t, []string{"localhost:6379"}, conf.Storage.Redis.Addresses)
}

func TestConfig_ENV_Overrides_File(t *testing.T) {
	t.Setenv("OSM_STORE_NAME", "from-env")

	conf, err := LoadConfigFromFileAndEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", conf.Store.Name)
}
