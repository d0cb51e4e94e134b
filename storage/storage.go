// Package storage provides flat key/value backends for persisted store
// snapshots. Every backend returns ErrNotFound for keys that were never written.
package storage

import (
	"context"
	"errors"
	"time"

	configcat "github.com/configcat/go-sdk/v9"
	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/diag/telemetry"
	"github.com/origami-state/osm/log"
)

const (
	keyName     = "key"
	payloadName = "payload"
)

var ErrNotFound = errors.New("storage: key not found")

type ReaderWriter = configcat.ConfigCache

type External interface {
	ReaderWriter
	Shutdown()
}

func SetupStorage(ctx context.Context, conf *config.StorageConfig, telemetryReporter telemetry.Reporter, log log.Logger) (External, error) {
	storageLog := log.WithPrefix("storage")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second) // give 15 sec to spin up the storage connection
	defer cancel()

	switch {
	case conf.Redis.Enabled:
		return newRedis(&conf.Redis, telemetryReporter, storageLog)
	case conf.MongoDb.Enabled:
		return newMongoDb(ctx, &conf.MongoDb, telemetryReporter, storageLog)
	case conf.DynamoDb.Enabled:
		return newDynamoDb(ctx, &conf.DynamoDb, telemetryReporter, storageLog)
	case conf.File.Enabled:
		return newFile(&conf.File, storageLog)
	}
	return NewMemory(storageLog), nil
}
