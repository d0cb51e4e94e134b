package storage

import (
	"context"

	"github.com/origami-state/osm/log"
	"github.com/puzpuzpuz/xsync/v3"
)

type memoryStore struct {
	entries *xsync.MapOf[string, []byte]
	log     log.Logger
}

// NewMemory returns a process-local storage. Its content is lost on exit.
func NewMemory(log log.Logger) External {
	log.Reportf("using in-memory storage")
	return &memoryStore{
		entries: xsync.NewMapOf[string, []byte](),
		log:     log,
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	res := make([]byte, len(v))
	copy(res, v)
	return res, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries.Store(key, stored)
	return nil
}

func (m *memoryStore) Shutdown() {
	m.entries.Clear()
	m.log.Reportf("shutdown complete")
}
