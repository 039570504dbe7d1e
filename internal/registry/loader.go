package registry

import (
	"log/slog"
)

// Loader resolves a definition set from one source. A loader returning
// (nil, nil) or an empty set simply yields to the next link in the chain.
type Loader interface {
	// Name identifies the loader for logging.
	Name() string

	// Load resolves the definition set, or reports why it could not.
	Load() (*Set, error)
}

// Chain is the ordered try/fallback resolver: the first loader that
// yields a non-empty set wins. A missing or unparseable source is
// non-fatal; the chain always ends in the hardcoded defaults, so callers
// are never blocked on "no data".
type Chain struct {
	loaders []Loader
	logger  *slog.Logger
}

// NewChain builds a chain over the given loaders in precedence order.
func NewChain(logger *slog.Logger, loaders ...Loader) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{loaders: loaders, logger: logger}
}

// Load returns the first non-empty set. Never returns nil: if every
// configured loader fails or comes back empty, the defaults apply.
func (c *Chain) Load() *Set {
	for _, l := range c.loaders {
		set, err := l.Load()
		if err != nil {
			c.logger.Warn("definition source unavailable", "loader", l.Name(), "error", err)
			continue
		}
		if set == nil || set.Empty() {
			c.logger.Debug("definition source is empty", "loader", l.Name())
			continue
		}
		c.logger.Info("definitions loaded",
			"loader", l.Name(),
			"products", len(set.Products()),
			"views", len(set.Views()),
		)
		return set
	}

	c.logger.Info("using default definitions")
	return Defaults()
}
