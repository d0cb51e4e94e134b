package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/log"
)

const fileExt = ".json"

type fileStore struct {
	dir string
	log log.Logger
}

func newFile(conf *config.FileConfig, log log.Logger) (External, error) {
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		log.Errorf("couldn't create the storage directory '%s': %s", conf.Dir, err)
		return nil, err
	}
	log.Reportf("using file storage in %s", conf.Dir)
	return &fileStore{
		dir: conf.Dir,
		log: log,
	}, nil
}

func (f *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set writes the value into a temporary file and renames it over the
// existing one, so readers never observe a partial write.
func (f *fileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("couldn't create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path(key))
}

func (f *fileStore) Shutdown() {
	f.log.Reportf("shutdown complete")
}

func (f *fileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileExt)
}
