// Package store implements a reactive value store addressed by dot-separated
// paths. Every top-level key is backed by its own signal, and named stores
// persist their whole content on each write.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/origami-state/osm/diag/status"
	"github.com/origami-state/osm/diag/telemetry"
	"github.com/origami-state/osm/internal/utils"
	"github.com/origami-state/osm/keypath"
	"github.com/origami-state/osm/log"
	"github.com/origami-state/osm/persist"
	"github.com/origami-state/osm/signal"
	"github.com/origami-state/osm/storage"
)

type Store struct {
	name         string
	signals      map[string]*signal.Signal[any]
	keys         []string
	adapter      *persist.Adapter
	persistMu    sync.Mutex
	equal        func(a, b any) bool
	state        atomic.Int32
	fromSnapshot bool
	log          log.Logger
	telemetry    telemetry.Reporter
	status       status.Reporter
}

// New creates a store. When the store is named and a snapshot exists under
// its name, the snapshot replaces initial entirely, including its key set.
// Otherwise initial is used and, for named stores, written as the first
// snapshot. The key set is fixed afterwards.
func New(ctx context.Context, initial map[string]any, opts ...Option) (*Store, error) {
	o := &options{
		log:       log.NewNullLogger(),
		telemetry: telemetry.NewEmptyReporter(),
		status:    status.NewEmptyReporter(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.storage != nil && o.name == "" {
		return nil, ErrNameRequired
	}
	if o.name == status.Storage {
		return nil, fmt.Errorf("%w: '%s'", ErrReservedName, o.name)
	}

	s := &Store{
		name:      o.name,
		equal:     o.equal,
		log:       o.log.WithPrefix("store"),
		telemetry: o.telemetry,
		status:    o.status,
	}
	if s.name != "" {
		s.log = s.log.WithPrefix(s.name)
		s.status.RegisterStore(s.name)
	}

	shape := initial
	if s.name != "" {
		rw := o.storage
		if rw == nil {
			rw = storage.NewMemory(s.log)
		}
		adapterOpts := []persist.Option{
			persist.WithLogger(s.log),
			persist.WithTelemetry(s.telemetry),
			persist.WithStatus(s.status),
		}
		if o.codec != nil {
			adapterOpts = append(adapterOpts, persist.WithCodec(o.codec))
		}
		if o.persistTimeout > 0 {
			adapterOpts = append(adapterOpts, persist.WithTimeout(o.persistTimeout))
		}
		s.adapter = persist.NewAdapter(s.name, rw, adapterOpts...)

		snapshot, found, err := s.adapter.Load(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			shape = snapshot
			s.fromSnapshot = true
			s.log.Infof("hydrated from snapshot (%d keys)", len(snapshot))
		} else {
			if shape == nil {
				shape = map[string]any{}
			}
			if err = s.adapter.Save(ctx, shape); err != nil {
				return nil, err
			}
			s.log.Infof("initial snapshot written (%d keys)", len(shape))
		}
	}

	s.signals = make(map[string]*signal.Signal[any], len(shape))
	for key, value := range shape {
		var sigOpts []signal.Option[any]
		if s.adapter != nil {
			sigOpts = append(sigOpts, signal.WithCommit(s.commitFn(key)))
		}
		s.signals[key] = signal.New(value, sigOpts...)
	}
	s.keys = utils.SortedKeys(s.signals)
	s.setState(Hydrated)
	return s, nil
}

// Read returns the value at path, or nil when a nested segment doesn't
// exist. The first segment must be a top-level key.
func (s *Store) Read(path string) (any, error) {
	v, _, err := s.Lookup(path)
	return v, err
}

// Lookup is like Read but also reports whether the addressed value exists.
func (s *Store) Lookup(path string) (any, bool, error) {
	keys, err := keypath.ParsePath(path)
	if err != nil {
		return nil, false, err
	}
	sig, err := s.Signal(keys[0])
	if err != nil {
		return nil, false, err
	}
	if len(keys) == 1 {
		return sig.Get(), true, nil
	}
	v, ok := keypath.GetNested(keys[1:], sig.Get())
	return v, ok, nil
}

// Update replaces the value at path with the result of updater and returns
// that result. Nested paths are written by copying the containers along the
// path, so values returned earlier are never modified.
//
// updater may run more than once when concurrent writes race on the same
// top-level key, so it must not have side effects. A non-nil error together
// with a value means the write was applied in memory but persisting it
// failed.
func (s *Store) Update(path string, updater func(any) any) (any, error) {
	keys, err := keypath.ParsePath(path)
	if err != nil {
		return nil, err
	}
	sig, err := s.Signal(keys[0])
	if err != nil {
		return nil, err
	}

	var result any
	var skipped bool
	_, err = sig.Apply(func(current any) (any, error) {
		skipped = false
		if len(keys) == 1 {
			result = updater(current)
			if s.equal != nil && s.equal(current, result) {
				skipped = true
				return nil, signal.ErrSkip
			}
			return result, nil
		}
		old, _ := keypath.GetNested(keys[1:], current)
		top, err := keypath.SetNested(keys[1:], current, func(v any) any {
			result = updater(v)
			return result
		})
		if err != nil {
			return nil, err
		}
		if s.equal != nil && s.equal(old, result) {
			skipped = true
			return nil, signal.ErrSkip
		}
		return top, nil
	})
	if errors.Is(err, keypath.ErrInvalidPath) {
		return nil, fmt.Errorf("%w (path '%s')", err, path)
	}
	if skipped {
		s.log.Debugf("'%s' unchanged, write skipped", path)
		return result, nil
	}

	s.telemetry.AddWriteCount(s.name, keys[0])
	s.telemetry.AddNotificationCount(sig.Len(), s.name, keys[0])
	s.setState(Live)
	if err != nil {
		s.log.Errorf("'%s' updated but not persisted: %s", path, err)
		return result, err
	}
	s.log.Debugf("'%s' updated", path)
	return result, nil
}

// Subscribe registers fn for every write of the top-level key. The returned
// function removes the subscription.
func (s *Store) Subscribe(key string, fn func(any)) (func(), error) {
	sig, err := s.Signal(key)
	if err != nil {
		return nil, err
	}
	return sig.Subscribe(fn), nil
}

// Signal returns the signal backing a top-level key.
func (s *Store) Signal(key string) (*signal.Signal[any], error) {
	sig, ok := s.signals[key]
	if !ok {
		return nil, &KeyNotFoundError{Key: key}
	}
	return sig, nil
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Snapshot returns the current value of every top-level key. The values are
// shared with the store and must not be modified.
func (s *Store) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(s.signals))
	for key, sig := range s.signals {
		snapshot[key] = sig.Get()
	}
	return snapshot
}

func (s *Store) State() State {
	return State(s.state.Load())
}

// FromSnapshot reports whether the store was hydrated from a stored snapshot.
func (s *Store) FromSnapshot() bool {
	return s.fromSnapshot
}

// LastWrite returns the details of the last persisted snapshot.
func (s *Store) LastWrite() (persist.LastWrite, bool) {
	if s.adapter == nil {
		return persist.LastWrite{}, false
	}
	return s.adapter.LastWrite()
}

// commitFn saves the whole store after a write of key.
func (s *Store) commitFn(key string) func(any) error {
	return func(v any) error {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()

		snapshot := s.Snapshot()
		snapshot[key] = v
		return s.adapter.Save(context.Background(), snapshot)
	}
}

func (s *Store) setState(state State) {
	if State(s.state.Swap(int32(state))) == state {
		return
	}
	if s.name != "" {
		s.status.ReportState(s.name, state.String(), len(s.keys))
	}
}

// Read returns the value at path in s.
func Read(path string, s *Store) (any, error) {
	return s.Read(path)
}

// Update applies updater to the value at path in s.
func Update(path string, s *Store, updater func(any) any) (any, error) {
	return s.Update(path, updater)
}
