package store

type State int32

const (
	Uninitialized State = iota
	// Hydrated means the values are resolved from a snapshot or the initial
	// shape and no write happened yet.
	Hydrated
	// Live means at least one write went through the store.
	Live
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Hydrated:
		return "hydrated"
	case Live:
		return "live"
	}
	return "unknown"
}
