package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/origami-state/osm/storage"
)

type storageInterceptor struct {
	storage.ReaderWriter

	reporter Reporter
}

// InterceptStorage reports the outcome of every storage operation under the
// Storage component. Missing keys are not treated as failures.
func InterceptStorage(reporter Reporter, rw storage.ReaderWriter) storage.ReaderWriter {
	return &storageInterceptor{reporter: reporter, ReaderWriter: rw}
}

func (i *storageInterceptor) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := i.ReaderWriter.Get(ctx, key)
	switch {
	case err == nil:
		i.reporter.ReportOk(Storage, fmt.Sprintf("'%s' read", key))
	case errors.Is(err, storage.ErrNotFound):
		i.reporter.ReportOk(Storage, fmt.Sprintf("'%s' not found", key))
	default:
		i.reporter.ReportError(Storage, fmt.Sprintf("failed to read '%s': %s", key, err))
	}
	return res, err
}

func (i *storageInterceptor) Set(ctx context.Context, key string, value []byte) error {
	err := i.ReaderWriter.Set(ctx, key, value)
	if err != nil {
		i.reporter.ReportError(Storage, fmt.Sprintf("failed to write '%s': %s", key, err))
	} else {
		i.reporter.ReportOk(Storage, fmt.Sprintf("'%s' written", key))
	}
	return err
}
