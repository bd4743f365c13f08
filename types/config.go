package types

import "strconv"

// Configuration is a flat string-keyed config map, decoded from the
// graph description or passed by the caller at graph-build time.
// Mirrors the teacher's api/types Configuration: simple, flat, and
// read through typed accessors rather than reflection.
type Configuration map[string]string

// GetUint64 returns the value at key parsed as uint64, or def if the
// key is absent or unparsable.
func (c Configuration) GetUint64(key string, def uint64) uint64 {
	v, ok := c[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// GetInt64 returns the value at key parsed as int64 (so that -1 can
// express "unbounded" per spec.md §3's Port.queue_size convention), or
// def if absent/unparsable.
func (c Configuration) GetInt64(key string, def int64) int64 {
	v, ok := c[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// GetString returns the value at key, or def if absent.
func (c Configuration) GetString(key string, def string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

// GetBool returns the value at key parsed as bool, or def if
// absent/unparsable.
func (c Configuration) GetBool(key string, def bool) bool {
	v, ok := c[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Config is the caller-supplied, process-wide engine configuration —
// the Go analogue of the teacher's api/types.Config struct (Logger,
// Pool, ComponentsRegistry, ...), trimmed to what the core lineage and
// checker subsystem actually consumes.
type Config struct {
	// Logger receives diagnostic output from every core component.
	Logger Logger
	// QueueSize is the default per-port capacity; -1 means unbounded.
	QueueSize int64
	// QueueSizeExternal is the capacity for InputVirtualNode's
	// external in-ports; 0 means "inherit QueueSize".
	QueueSizeExternal int64
}

// WithDefaults fills unset fields with engine defaults.
func (c Config) WithDefaults() Config {
	if c.Logger == nil {
		c.Logger = DefaultLogger()
	}
	if c.QueueSize == 0 {
		c.QueueSize = -1
	}
	return c
}
