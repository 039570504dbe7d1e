package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Constructor builds an adapter from its configuration. Constructors must
// not connect; that happens explicitly via Backend.Connect.
type Constructor func(cfg Config, logger *slog.Logger) (Backend, error)

// Config carries connection parameters for every adapter type. Each
// adapter reads only the fields relevant to its engine.
type Config struct {
	// Type selects the adapter ("sqlite", "postgres", "warehouse").
	Type string

	// Path is the database file location (embedded engine).
	Path string

	// Host, Port, Database, User, Password configure the relational server.
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// Endpoint, Project, Dataset, APIKey configure the warehouse client.
	Endpoint string
	Project  string
	Dataset  string
	APIKey   string

	// PoolMinConns and PoolMaxConns bound the relational connection pool.
	PoolMinConns int32
	PoolMaxConns int32

	// MaxRows truncates result sets larger than this. Zero means no limit.
	MaxRows int
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes an adapter constructor available under a type name.
// Adapter packages call this from init, like database/sql drivers.
// Registering an existing name replaces the previous constructor, which
// lets tests install spies.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// New creates an adapter for the given type name. Unknown names yield an
// error enumerating the supported types.
func New(name string, cfg Config, logger *slog.Logger) (Backend, error) {
	registryMu.RLock()
	ctor, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q: supported types are %s",
			name, strings.Join(SupportedTypes(), ", "))
	}
	return ctor(cfg, logger)
}

// SupportedTypes returns the registered type names, sorted.
func SupportedTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
