// Package keypath resolves dot-separated paths against trees of
// map[string]any and []any values.
//
// Updates are copy-on-write: every container along the path is shallow-cloned
// and the containers outside of it are shared with the original tree.
package keypath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const Separator = "."

var ErrInvalidPath = errors.New("invalid path")

// ParsePath splits path into its segments.
func ParsePath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	keys := strings.Split(path, Separator)
	for i, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty segment at position %d in '%s'", ErrInvalidPath, i, path)
		}
	}
	return keys, nil
}

// GetNested returns the value addressed by keys under root. The second return
// value is false when a key is missing or an intermediate value is not a
// container.
func GetNested(keys []string, root any) (any, bool) {
	current := root
	for _, key := range keys {
		switch c := current.(type) {
		case map[string]any:
			v, ok := c[key]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, ok := index(key)
			if !ok || idx >= len(c) {
				return nil, false
			}
			current = c[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// SetNested returns a copy of root where the value addressed by keys is
// replaced with the result of updater. The updater receives the current value,
// or nil when it doesn't exist. Missing or non-container intermediate values
// are replaced with empty maps. A slice index may address an existing element
// or the one right after the last, which appends.
func SetNested(keys []string, root any, updater func(any) any) (any, error) {
	if len(keys) == 0 {
		return updater(root), nil
	}
	key := keys[0]
	switch c := root.(type) {
	case []any:
		idx, ok := index(key)
		if !ok {
			return nil, fmt.Errorf("%w: '%s' is not a valid index", ErrInvalidPath, key)
		}
		if idx > len(c) {
			return nil, fmt.Errorf("%w: index %d is out of range (length %d)", ErrInvalidPath, idx, len(c))
		}
		clone := Clone(c).([]any)
		var child any
		if idx == len(c) {
			clone = append(clone, nil)
		} else {
			child = c[idx]
		}
		next, err := setChild(keys[1:], child, updater)
		if err != nil {
			return nil, err
		}
		clone[idx] = next
		return clone, nil
	case map[string]any:
		clone := Clone(c).(map[string]any)
		next, err := setChild(keys[1:], c[key], updater)
		if err != nil {
			return nil, err
		}
		clone[key] = next
		return clone, nil
	default:
		next, err := setChild(keys[1:], nil, updater)
		if err != nil {
			return nil, err
		}
		return map[string]any{key: next}, nil
	}
}

// Clone returns a shallow copy of maps and slices, other values are returned as is.
func Clone(v any) any {
	switch c := v.(type) {
	case map[string]any:
		return cloneMap(c)
	case []any:
		clone := make([]any, len(c))
		copy(clone, c)
		return clone
	default:
		return v
	}
}

func setChild(keys []string, child any, updater func(any) any) (any, error) {
	if len(keys) == 0 {
		return updater(child), nil
	}
	switch child.(type) {
	case map[string]any, []any:
	default:
		child = map[string]any{}
	}
	return SetNested(keys, child, updater)
}

func cloneMap(m map[string]any) map[string]any {
	clone := make(map[string]any, len(m)+1)
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

func index(key string) (int, bool) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
