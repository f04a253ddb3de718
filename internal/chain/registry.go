package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/quantbox/chainfeed/internal/stream"
)

// StreamConn is the connection surface the registry wires engines into.
// *stream.Conn satisfies it.
type StreamConn interface {
	Subscriber
	RegisterHandler(mode stream.Mode, h stream.Handler)
}

// Registry owns the live engines, one per (underlying, expiry) pair. All
// engines share a single stream connection; the registry registers each
// engine's callbacks at creation so ticks fan out to every chain.
type Registry struct {
	conn   StreamConn
	quoter Quoter
	logger *slog.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry bound to one connection and quote
// source.
func NewRegistry(conn StreamConn, quoter Quoter, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conn:    conn,
		quoter:  quoter,
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

func engineKey(underlying, expiry string) string {
	return fmt.Sprintf("%s_%s", underlying, expiry)
}

// GetOrCreate returns the engine for a pair, creating and initializing it on
// first use. Creation registers the engine's quote and depth handlers on the
// shared connection; initialization failures beyond symbol validation are
// recoverable and logged, the engine is still returned.
func (r *Registry) GetOrCreate(ctx context.Context, underlying, expiry string) (*Engine, error) {
	key := engineKey(underlying, expiry)

	r.mu.RLock()
	eng, ok := r.engines[key]
	r.mu.RUnlock()
	if ok {
		return eng, nil
	}

	r.mu.Lock()
	if eng, ok := r.engines[key]; ok {
		r.mu.Unlock()
		return eng, nil
	}

	instanceID := uuid.NewString()[:8]
	logger := r.logger.With("chain", key, "instance", instanceID)

	eng, err := NewEngine(underlying, expiry, r.conn, logger)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	eng.instanceID = instanceID

	r.engines[key] = eng
	r.mu.Unlock()

	if r.conn != nil {
		r.conn.RegisterHandler(stream.ModeQuote, eng.OnQuoteUpdate)
		r.conn.RegisterHandler(stream.ModeDepth, eng.OnDepthUpdate)
	}

	if err := eng.Initialize(ctx, r.quoter); err != nil {
		logger.Warn("deferred chain initialization", "error", err)
	}

	return eng, nil
}

// Get returns an existing engine, or nil when none has been created for the
// pair.
func (r *Registry) Get(underlying, expiry string) *Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engines[engineKey(underlying, expiry)]
}

// Engines returns the current engine set. The slice is a copy.
func (r *Registry) Engines() []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Engine, 0, len(r.engines))
	for _, eng := range r.engines {
		out = append(out, eng)
	}
	return out
}
