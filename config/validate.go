package config

import (
	"errors"
	"fmt"
	"os"
)

// reservedStoreName is the component name of the storage health records.
const reservedStoreName = "storage"

func (c *Config) Validate() error {
	if err := c.Store.validate(&c.Storage); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Diag.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate(storage *StorageConfig) error {
	if storage.IsSet() && s.Name == "" {
		return fmt.Errorf("store: a store name is required when a storage is configured")
	}
	if s.Name == reservedStoreName {
		return fmt.Errorf("store: '%s' is a reserved name", s.Name)
	}
	if s.InitialFile != "" {
		if _, err := os.Stat(s.InitialFile); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("store: couldn't find the initial state file %s", s.InitialFile)
		}
	}
	if s.PersistTimeout < 1 {
		return fmt.Errorf("store: persist timeout must be greater than 1 seconds")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	enabled := 0
	for _, on := range []bool{s.Redis.Enabled, s.MongoDb.Enabled, s.DynamoDb.Enabled, s.File.Enabled} {
		if on {
			enabled++
		}
	}
	if enabled > 1 {
		return fmt.Errorf("storage: only one storage can be enabled at a time")
	}
	if err := s.Redis.validate(); err != nil {
		return err
	}
	if err := s.MongoDb.validate(); err != nil {
		return err
	}
	if err := s.DynamoDb.validate(); err != nil {
		return err
	}
	if err := s.File.validate(); err != nil {
		return err
	}
	return nil
}

func (r *RedisConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if len(r.Addresses) == 0 {
		return fmt.Errorf("redis: at least 1 server address required")
	}
	if err := r.Tls.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MongoDbConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Url == "" {
		return fmt.Errorf("mongodb: invalid connection uri")
	}
	if m.Database == "" {
		return fmt.Errorf("mongodb: database name is required")
	}
	if m.Collection == "" {
		return fmt.Errorf("mongodb: collection name is required")
	}
	if err := m.Tls.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DynamoDbConfig) validate() error {
	if !d.Enabled {
		return nil
	}
	if d.Table == "" {
		return fmt.Errorf("dynamodb: table name is required")
	}
	return nil
}

func (f *FileConfig) validate() error {
	if !f.Enabled {
		return nil
	}
	if f.Dir == "" {
		return fmt.Errorf("file: storage directory is required")
	}
	return nil
}

func (d *DiagConfig) validate() error {
	if err := d.Metrics.Otlp.validate("metrics"); err != nil {
		return err
	}
	if err := d.Traces.Otlp.validate("traces"); err != nil {
		return err
	}
	return nil
}

func (o *OtlpExporterConfig) validate(component string) error {
	if !o.Enabled {
		return nil
	}
	if o.Protocol != "grpc" && o.Protocol != "http" && o.Protocol != "https" {
		return fmt.Errorf("%s: invalid otlp protocol, it must be 'grpc', 'http' or 'https'", component)
	}
	return nil
}

func (t *TlsConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	for _, cert := range t.Certificates {
		if (cert.Cert != "" && cert.Key == "") || (cert.Key != "" && cert.Cert == "") {
			return fmt.Errorf("tls: both TLS cert and key file required")
		}
	}
	return nil
}
