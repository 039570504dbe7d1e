// Package gateway is the orchestrating query service: it owns one
// backend adapter for its process lifetime, validates and executes SQL,
// classifies failures, assembles the canonical response envelope, and
// bootstraps declared views at startup.
//
// The gateway is constructed explicitly by the process entry point and
// passed by reference to every call site; there is no package-level
// singleton, so tests get fresh instances.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/strata/internal/backend"
	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/registry"
)

// State tracks the gateway lifecycle:
// Uninitialized -> Initializing -> Ready -> Closed.
// Returning to Initializing requires an explicit Reload.
type State int

// Gateway lifecycle states.
const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosed
)

// String renders the state for logs and status maps.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Gateway is the multi-backend SQL execution service.
//
// Concurrency: queries hold the read lock, so they run concurrently up
// to whatever the adapter allows (the pooled adapter runs them in
// parallel, the embedded adapter serializes internally). Init, Reload,
// and Close hold the write lock, making bootstrap mutually exclusive
// with in-flight queries.
type Gateway struct {
	cfg     config.Config
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	state   State
	backend backend.Backend
	defs    *registry.Set
}

// New creates an uninitialized gateway. Call Init before executing.
func New(cfg config.Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.QueryTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		cfg:     cfg,
		logger:  logger.With("component", "gateway"),
		timeout: timeout,
		state:   StateUninitialized,
	}
}

// Init connects the configured backend, resolves the definition set
// through the loader chain, and bootstraps views. Connection failure is
// fatal at startup; definition-source failures are not, because the
// chain always ends in usable defaults.
func (g *Gateway) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateReady:
		return nil
	case StateClosed:
		return fmt.Errorf("gateway is closed")
	}
	g.state = StateInitializing

	if err := g.initLocked(ctx); err != nil {
		g.state = StateUninitialized
		return err
	}

	g.state = StateReady
	g.logger.Info("gateway ready",
		"backend", g.cfg.Backend.Type,
		"definition_source", g.defs.Source(),
		"products", len(g.defs.Products()),
		"views", len(g.defs.Views()),
	)
	return nil
}

// initLocked does the bootstrap work. Caller holds the write lock.
func (g *Gateway) initLocked(ctx context.Context) error {
	b, err := backend.New(g.cfg.Backend.Type, g.backendConfig(), g.logger)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	if !b.Connect(ctx) {
		return backend.NewConnectionError(
			fmt.Sprintf("backend %q failed to connect", g.cfg.Backend.Type), nil)
	}
	g.backend = b

	chain := registry.NewChain(g.logger,
		registry.ContractLoader{Path: g.cfg.ContractPath},
		registry.RegistryLoader{Path: g.cfg.RegistryPath},
		registry.DefaultsLoader{},
	)
	g.defs = chain.Load()

	g.bootstrapViews(ctx)
	return nil
}

// backendConfig maps process configuration onto the adapter config.
func (g *Gateway) backendConfig() backend.Config {
	bc := g.cfg.Backend
	return backend.Config{
		Type:         bc.Type,
		Path:         bc.Path,
		Host:         bc.Host,
		Port:         bc.Port,
		Database:     bc.Database,
		User:         bc.User,
		Password:     bc.Password,
		Endpoint:     bc.Endpoint,
		Project:      bc.Project,
		Dataset:      bc.Dataset,
		APIKey:       bc.APIKey,
		PoolMinConns: bc.PoolMin,
		PoolMaxConns: bc.PoolMax,
		MaxRows:      g.cfg.MaxRows,
	}
}

// Reload re-runs definition resolution and view bootstrap under the
// write lock, so it is mutually exclusive with in-flight queries. The
// backend connection is kept; only the definition set is replaced, as a
// whole, never patched.
func (g *Gateway) Reload(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateReady {
		return fmt.Errorf("reload requires a ready gateway, state is %s", g.state)
	}
	g.state = StateInitializing

	chain := registry.NewChain(g.logger,
		registry.ContractLoader{Path: g.cfg.ContractPath},
		registry.RegistryLoader{Path: g.cfg.RegistryPath},
		registry.DefaultsLoader{},
	)
	g.defs = chain.Load()
	g.bootstrapViews(ctx)

	g.state = StateReady
	g.logger.Info("gateway reloaded",
		"definition_source", g.defs.Source(),
		"views", len(g.defs.Views()),
	)
	return nil
}

// Close releases the backend connection. Idempotent. A closed gateway
// cannot be re-initialized.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateClosed {
		return nil
	}
	if g.backend != nil {
		g.backend.Disconnect()
	}
	g.state = StateClosed
	g.logger.Info("gateway closed")
	return nil
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Definitions returns the active definition set.
func (g *Gateway) Definitions() *registry.Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.defs
}

// Views lists the views actually present on the backend. Unlike
// Definitions, this reflects what bootstrap (and fallback synthesis)
// produced on the engine.
func (g *Gateway) Views(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.state != StateReady {
		return nil, fmt.Errorf("gateway is %s, not ready", g.state)
	}
	return g.backend.ListViews(ctx)
}

// Status aggregates adapter metadata and definition counts for
// diagnostics.
func (g *Gateway) Status() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	status := map[string]any{
		"state":        g.state.String(),
		"backend_type": g.cfg.Backend.Type,
	}
	if g.backend != nil {
		status["backend"] = g.backend.Metadata()
	}
	if g.defs != nil {
		status["definition_source"] = g.defs.Source()
		status["products"] = len(g.defs.Products())
		status["views"] = len(g.defs.Views())
	}
	return status
}

// bootstrapViews materializes every declared view, tolerating individual
// failures, then verifies the required analytic views and synthesizes
// fallbacks for any that are missing. Caller holds the write lock.
func (g *Gateway) bootstrapViews(ctx context.Context) {
	for _, v := range g.defs.Views() {
		if ok := g.backend.CreateView(ctx, v.Name, v.SQL, true); !ok {
			// One view's failure never aborts the remaining set.
			g.logger.Warn("view bootstrap failed",
				"view", v.Name,
				"source_product", v.SourceProductID,
			)
		}
	}

	var missing []string
	for _, name := range registry.RequiredViews() {
		exists, err := g.backend.CheckViewExists(ctx, name)
		if err != nil {
			g.logger.Warn("view existence check failed", "view", name, "error", err)
			continue
		}
		if !exists {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}

	g.logger.Info("synthesizing fallback views", "views", missing)
	for name, ok := range g.backend.CreateFallbackViews(ctx, missing) {
		if !ok {
			g.logger.Warn("fallback view synthesis failed", "view", name)
		}
	}
}
