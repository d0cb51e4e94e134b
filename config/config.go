package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/origami-state/osm/log"
	"gopkg.in/yaml.v3"
)

const (
	defaultDiagPort       = 8051
	defaultPersistTimeout = 5
)

var allowedLogLevels = map[string]log.Level{
	"debug": log.Debug,
	"info":  log.Info,
	"warn":  log.Warn,
	"error": log.Error,
}

var allowedTlsVersions = map[float64]uint16{
	1.0: tls.VersionTLS10,
	1.1: tls.VersionTLS11,
	1.2: tls.VersionTLS12,
	1.3: tls.VersionTLS13,
}

type Config struct {
	Log     LogConfig
	Store   StoreConfig
	Storage StorageConfig
	Diag    DiagConfig
}

type StoreConfig struct {
	Name           string `yaml:"name"`
	InitialFile    string `yaml:"initial_file"`
	PersistTimeout int    `yaml:"persist_timeout"`
	SkipUnchanged  bool   `yaml:"skip_unchanged"`
	Log            LogConfig
}

type StorageConfig struct {
	Redis    RedisConfig
	MongoDb  MongoDbConfig  `yaml:"mongodb"`
	DynamoDb DynamoDbConfig `yaml:"dynamodb"`
	File     FileConfig
	Log      LogConfig
}

type RedisConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	DB        int      `yaml:"db"`
	User      string   `yaml:"user"`
	Password  string   `yaml:"password"`
	Tls       TlsConfig
}

type MongoDbConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Url        string `yaml:"url"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Tls        TlsConfig
}

type DynamoDbConfig struct {
	Enabled bool   `yaml:"enabled"`
	Table   string `yaml:"table"`
	Url     string `yaml:"url"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type DiagConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
	Status  StatusConfig
	Metrics MetricsConfig
	Traces  TraceConfig
}

type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Prometheus PrometheusExporterConfig
	Otlp       OtlpExporterConfig
}

type TraceConfig struct {
	Enabled bool `yaml:"enabled"`
	Otlp    OtlpExporterConfig
}

type PrometheusExporterConfig struct {
	Enabled bool `yaml:"enabled"`
}

type OtlpExporterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Protocol string `yaml:"protocol"`
	Endpoint string `yaml:"endpoint"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CertConfig struct {
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`
}

type TlsConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinVersion   float64 `yaml:"min_version"`
	ServerName   string  `yaml:"server_name"`
	Certificates []CertConfig
}

func LoadConfigFromFileAndEnvironment(filePath string) (Config, error) {
	var config Config
	config.setDefaults()

	if filePath != "" {
		_, err := os.Stat(filePath)
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s does not exist: %s", filePath, err)
		}
		realPath, err := filepath.EvalSymlinks(filePath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to eval symlink for %s: %s", realPath, err)
		}
		data, err := os.ReadFile(realPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %s", realPath, err)
		}

		err = yaml.Unmarshal(data, &config)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML from config file %s: %s", realPath, err)
		}
	}

	config.loadEnv()
	if config.Log.GetLevel() == log.None {
		config.Log.Level = "warn"
	}
	config.fixupLogLevels(config.Log.Level)
	return config, nil
}

func (l *LogConfig) GetLevel() log.Level {
	if lvl, ok := allowedLogLevels[l.Level]; ok {
		return lvl
	}
	return log.None
}

func (t *TlsConfig) GetVersion() uint16 {
	if ver, ok := allowedTlsVersions[t.MinVersion]; ok {
		return ver
	}
	return tls.VersionTLS12
}

func (t *TlsConfig) LoadTlsOptions() (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion: t.GetVersion(),
		ServerName: t.ServerName,
	}
	for _, c := range t.Certificates {
		if cert, err := tls.LoadX509KeyPair(c.Cert, c.Key); err == nil {
			conf.Certificates = append(conf.Certificates, cert)
		} else {
			return nil, fmt.Errorf("failed to load certificate and key files: %s", err)
		}
	}
	return conf, nil
}

// GetPersistTimeout returns the deadline applied to a single snapshot write.
func (s *StoreConfig) GetPersistTimeout() time.Duration {
	if s.PersistTimeout < 1 {
		return defaultPersistTimeout * time.Second
	}
	return time.Duration(s.PersistTimeout) * time.Second
}

func (s *StorageConfig) IsSet() bool {
	return s.Redis.Enabled || s.MongoDb.Enabled || s.DynamoDb.Enabled || s.File.Enabled
}

func (d *DiagConfig) IsMetricsEnabled() bool {
	return d.Enabled && d.Metrics.Enabled
}

func (d *DiagConfig) IsPrometheusExporterEnabled() bool {
	return d.IsMetricsEnabled() && d.Metrics.Prometheus.Enabled
}

func (d *DiagConfig) IsTracesEnabled() bool {
	return d.Enabled && d.Traces.Enabled
}

func (d *DiagConfig) IsStatusEnabled() bool {
	return d.Enabled && d.Status.Enabled
}

func (c *Config) setDefaults() {
	c.Store.PersistTimeout = defaultPersistTimeout

	c.Diag.Enabled = true
	c.Diag.Port = defaultDiagPort
	c.Diag.Status.Enabled = true
	c.Diag.Metrics.Enabled = true
	c.Diag.Metrics.Prometheus.Enabled = true

	c.Storage.Redis.DB = 0
	c.Storage.Redis.Addresses = []string{"localhost:6379"}
	c.Storage.Redis.Tls.MinVersion = 1.2

	c.Storage.MongoDb.Database = "osm"
	c.Storage.MongoDb.Collection = "snapshots"
	c.Storage.MongoDb.Tls.MinVersion = 1.2

	c.Storage.DynamoDb.Table = "osm_snapshots"

	c.Storage.File.Dir = "./osm-data"
}

func (c *Config) fixupLogLevels(defLevel string) {
	if c.Store.Log.GetLevel() == log.None {
		c.Store.Log.Level = defLevel
	}
	if c.Storage.Log.GetLevel() == log.None {
		c.Storage.Log.Level = defLevel
	}
}
