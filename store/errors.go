package store

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound = errors.New("store: key not found")
	// ErrNameRequired is returned when a storage is given to an unnamed store.
	ErrNameRequired = errors.New("store: a name is required to use a storage")
	ErrReservedName = errors.New("store: name is reserved")
)

// KeyNotFoundError is returned when the first segment of a path is not a
// top-level key of the store. It matches ErrKeyNotFound with errors.Is.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("store: key '%s' not found", e.Key)
}

func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}
