package config

import (
	"encoding/json"
	"os"
	"strconv"
)

var envPrefix = "OSM"

var toInt = func(s string) (int, error) { return strconv.Atoi(s) }
var toBool = func(s string) (bool, error) { return strconv.ParseBool(s) }
var toFloat = func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
var toStringSlice = func(s string) ([]string, error) {
	var r []string
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
var toCertConfigSlice = func(s string) ([]CertConfig, error) {
	var r []CertConfig
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Config) loadEnv() {
	c.Log.loadEnv(envPrefix)
	c.Store.loadEnv(envPrefix)
	c.Storage.loadEnv(envPrefix)
	c.Diag.loadEnv(envPrefix)
}

func (s *StoreConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "STORE")
	readEnvString(prefix, "NAME", &s.Name)
	readEnvString(prefix, "INITIAL_FILE", &s.InitialFile)
	readEnv(prefix, "PERSIST_TIMEOUT", &s.PersistTimeout, toInt)
	readEnv(prefix, "SKIP_UNCHANGED", &s.SkipUnchanged, toBool)
	s.Log.loadEnv(prefix)
}

func (s *StorageConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "STORAGE")
	s.Redis.loadEnv(prefix)
	s.MongoDb.loadEnv(prefix)
	s.DynamoDb.loadEnv(prefix)
	s.File.loadEnv(prefix)
	s.Log.loadEnv(prefix)
}

func (r *RedisConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "REDIS")
	readEnvString(prefix, "USER", &r.User)
	readEnvString(prefix, "PASSWORD", &r.Password)
	readEnv(prefix, "DB", &r.DB, toInt)
	readEnv(prefix, "ENABLED", &r.Enabled, toBool)
	readEnv(prefix, "ADDRESSES", &r.Addresses, toStringSlice)
	r.Tls.loadEnv(prefix)
}

func (m *MongoDbConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "MONGODB")
	readEnv(prefix, "ENABLED", &m.Enabled, toBool)
	readEnvString(prefix, "URL", &m.Url)
	readEnvString(prefix, "DATABASE", &m.Database)
	readEnvString(prefix, "COLLECTION", &m.Collection)
	m.Tls.loadEnv(prefix)
}

func (d *DynamoDbConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "DYNAMODB")
	readEnv(prefix, "ENABLED", &d.Enabled, toBool)
	readEnvString(prefix, "TABLE", &d.Table)
	readEnvString(prefix, "URL", &d.Url)
}

func (f *FileConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "FILE")
	readEnv(prefix, "ENABLED", &f.Enabled, toBool)
	readEnvString(prefix, "DIR", &f.Dir)
}

func (d *DiagConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "DIAG")
	readEnv(prefix, "PORT", &d.Port, toInt)
	readEnv(prefix, "ENABLED", &d.Enabled, toBool)
	d.Status.loadEnv(prefix)
	d.Metrics.loadEnv(prefix)
	d.Traces.loadEnv(prefix)
}

func (s *StatusConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "STATUS")
	readEnv(prefix, "ENABLED", &s.Enabled, toBool)
}

func (m *MetricsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "METRICS")
	readEnv(prefix, "ENABLED", &m.Enabled, toBool)
	m.Prometheus.loadEnv(prefix)
	m.Otlp.loadEnv(prefix)
}

func (t *TraceConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TRACES")
	readEnv(prefix, "ENABLED", &t.Enabled, toBool)
	t.Otlp.loadEnv(prefix)
}

func (p *PrometheusExporterConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "PROMETHEUS")
	readEnv(prefix, "ENABLED", &p.Enabled, toBool)
}

func (o *OtlpExporterConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "OTLP")
	readEnv(prefix, "ENABLED", &o.Enabled, toBool)
	readEnvString(prefix, "PROTOCOL", &o.Protocol)
	readEnvString(prefix, "ENDPOINT", &o.Endpoint)
}

func (t *TlsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TLS")
	readEnvString(prefix, "SERVER_NAME", &t.ServerName)
	readEnv(prefix, "MIN_VERSION", &t.MinVersion, toFloat)
	readEnv(prefix, "ENABLED", &t.Enabled, toBool)
	readEnv(prefix, "CERTIFICATES", &t.Certificates, toCertConfigSlice)
}

func (l *LogConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "LOG")
	readEnvString(prefix, "LEVEL", &l.Level)
}

func readEnv[T any](prefix string, key string, in *T, conv func(string) (T, error)) {
	if env := os.Getenv(prefix + "_" + key); env != "" {
		if r, err := conv(env); err == nil {
			*in = r
		}
	}
}

func readEnvString(prefix string, key string, in *string) {
	if env := os.Getenv(prefix + "_" + key); env != "" {
		*in = env
	}
}

func concatPrefix(p1 string, p2 string) string {
	return p1 + "_" + p2
}
