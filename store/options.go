package store

import (
	"reflect"
	"time"

	"github.com/origami-state/osm/diag/status"
	"github.com/origami-state/osm/diag/telemetry"
	"github.com/origami-state/osm/log"
	"github.com/origami-state/osm/persist"
	"github.com/origami-state/osm/storage"
)

type Option func(s *options)

type options struct {
	name           string
	storage        storage.ReaderWriter
	codec          persist.Codec
	persistTimeout time.Duration
	equal          func(a, b any) bool
	log            log.Logger
	telemetry      telemetry.Reporter
	status         status.Reporter
}

// WithName makes the store persistent. Its snapshot is kept under name in
// the storage, or in a process-local memory storage when none is given.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func WithStorage(rw storage.ReaderWriter) Option {
	return func(o *options) {
		o.storage = rw
	}
}

func WithCodec(codec persist.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

func WithPersistTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.persistTimeout = timeout
	}
}

// WithSkipUnchanged drops writes whose new value is equal to the old one
// according to equal. Dropped writes don't notify and aren't persisted.
func WithSkipUnchanged(equal func(a, b any) bool) Option {
	return func(o *options) {
		o.equal = equal
	}
}

func WithLogger(log log.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithTelemetry(reporter telemetry.Reporter) Option {
	return func(o *options) {
		o.telemetry = reporter
	}
}

func WithStatus(reporter status.Reporter) Option {
	return func(o *options) {
		o.status = reporter
	}
}

// DeepEqual can be passed to WithSkipUnchanged.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
