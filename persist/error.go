package persist

import "fmt"

type Op string

const (
	OpLoad   Op = "load"
	OpSave   Op = "save"
	OpEncode Op = "encode"
	OpDecode Op = "decode"
)

// PersistenceError wraps failures of the snapshot storage so callers don't
// depend on the error types of a specific backend.
type PersistenceError struct {
	Store string
	Op    Op
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence of store '%s' failed to %s snapshot: %s", e.Store, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
