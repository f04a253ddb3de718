package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantbox/chainfeed/internal/api"
	"github.com/quantbox/chainfeed/internal/model"
	"github.com/quantbox/chainfeed/internal/stream"
)

// Strikes generated on each side of ATM.
const strikeWindow = 20

// Quoter fetches one-shot quotes, satisfied by *api.Client.
type Quoter interface {
	Quotes(ctx context.Context, symbol, exchange string) (api.Quote, error)
}

// Subscriber requests market-data subscriptions, satisfied by *stream.Conn.
type Subscriber interface {
	Subscribe(symbol, exchange string, mode stream.Mode) error
}

// routeEntry maps a broker trading symbol to its grid cell.
type routeEntry struct {
	strikeKey string
	side      string // model.SideCE or model.SidePE
}

// Engine maintains the live option chain for one (underlying, expiry) pair.
// OnQuoteUpdate and OnDepthUpdate are the stream callback entry points;
// Snapshot may be called concurrently with both.
type Engine struct {
	underlying    string
	expiry        string
	expirySegment string // DDMon, precomputed for symbol construction
	instanceID    string // Set by the registry, shows up in logs and health
	step          decimal.Decimal
	conn          Subscriber
	logger        *slog.Logger

	mu            sync.RWMutex
	initialized   bool
	atm           decimal.Decimal
	underlyingLTP decimal.Decimal
	underlyingBid decimal.Decimal
	underlyingAsk decimal.Decimal
	rows          map[string]*model.StrikeRow // strike.String() → row
	order         []string                    // strike keys, ascending
	routing       map[string]routeEntry       // trading symbol → cell
}

// NewEngine creates an engine for one chain. The expiry is validated eagerly:
// an unparsable expiry is a constructor error, not a fallback date.
func NewEngine(underlying, expiry string, conn Subscriber, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	segment, err := parseExpiry(expiry)
	if err != nil {
		return nil, fmt.Errorf("expiry for %s: %w", underlying, err)
	}

	return &Engine{
		underlying:    underlying,
		expiry:        expiry,
		expirySegment: segment,
		step:          StrikeStep(underlying),
		conn:          conn,
		logger:        logger,
		rows:          make(map[string]*model.StrikeRow),
		routing:       make(map[string]routeEntry),
	}, nil
}

// Underlying returns the engine's index symbol.
func (e *Engine) Underlying() string { return e.underlying }

// Expiry returns the engine's expiry as received.
func (e *Engine) Expiry() string { return e.expiry }

// InstanceID returns the identifier assigned at registration, empty for
// engines created outside a registry.
func (e *Engine) InstanceID() string { return e.instanceID }

// Initialize bootstraps the chain: fetches one underlying quote when no
// cached LTP exists, computes ATM, generates the strike grid, and issues the
// batched subscriptions. Idempotent: a second call on an initialized engine
// is a no-op.
//
// A quote fetch failure or non-positive LTP is recoverable: the grid stays
// empty and can still be generated later by the first streamed quote.
func (e *Engine) Initialize(ctx context.Context, quoter Quoter) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		e.logger.Info("chain already initialized", "underlying", e.underlying)
		return nil
	}

	if len(e.rows) > 0 {
		// A streamed quote already bootstrapped the grid and subscriptions.
		e.initialized = true
		e.mu.Unlock()
		return nil
	}

	if !e.underlyingLTP.IsPositive() {
		e.mu.Unlock()
		quote, err := quoter.Quotes(ctx, e.underlying, IndexExchange(e.underlying))
		if err != nil {
			return fmt.Errorf("fetch underlying quote: %w", err)
		}
		e.mu.Lock()
		if len(e.rows) > 0 {
			// A streamed quote raced the fetch and won.
			e.initialized = true
			e.mu.Unlock()
			return nil
		}
		if quote.LTP.IsPositive() {
			e.underlyingLTP = quote.LTP
			e.underlyingBid = orDefault(quote.Bid, quote.LTP)
			e.underlyingAsk = orDefault(quote.Ask, quote.LTP)
		}
	}

	if !e.underlyingLTP.IsPositive() {
		e.mu.Unlock()
		return fmt.Errorf("no positive LTP for %s, chain left empty", e.underlying)
	}

	e.atm = model.ATMStrike(e.underlyingLTP, e.step)
	e.generateLocked()
	e.initialized = true
	symbols := e.optionSymbolsLocked()
	e.mu.Unlock()

	e.logger.Info("chain initialized",
		"underlying", e.underlying,
		"expiry", e.expiry,
		"atm", e.atm,
		"strikes", len(symbols)/2,
	)

	return e.subscribeAll(symbols)
}

// orDefault returns v when positive, else fallback.
func orDefault(v, fallback decimal.Decimal) decimal.Decimal {
	if v.IsPositive() {
		return v
	}
	return fallback
}

// generateLocked builds the strike grid and routing table around the current
// ATM: strikeWindow rows on each side plus the ATM row. Caller holds e.mu.
func (e *Engine) generateLocked() {
	if !e.atm.IsPositive() {
		e.logger.Warn("strike generation skipped, ATM is 0", "underlying", e.underlying)
		return
	}
	if len(e.rows) > 0 {
		return
	}

	for i := -strikeWindow; i <= strikeWindow; i++ {
		strike := e.atm.Add(e.step.Mul(decimal.NewFromInt(int64(i))))
		key := strike.String()

		ce := optionSymbol(e.underlying, e.expirySegment, strike, model.SideCE)
		pe := optionSymbol(e.underlying, e.expirySegment, strike, model.SidePE)

		e.rows[key] = &model.StrikeRow{
			Strike:   strike,
			Tag:      model.TagFor(i),
			Position: i,
			CESymbol: ce,
			PESymbol: pe,
		}
		e.order = append(e.order, key)
		e.routing[ce] = routeEntry{strikeKey: key, side: model.SideCE}
		e.routing[pe] = routeEntry{strikeKey: key, side: model.SidePE}
	}

	sort.Slice(e.order, func(i, j int) bool {
		return e.rows[e.order[i]].Strike.LessThan(e.rows[e.order[j]].Strike)
	})

	e.logger.Info("generated strikes",
		"underlying", e.underlying,
		"count", len(e.order),
		"atm", e.atm,
	)
}

// optionSymbolsLocked returns every option symbol in grid order, CE then PE
// per strike. Caller holds e.mu.
func (e *Engine) optionSymbolsLocked() []string {
	symbols := make([]string, 0, 2*len(e.order))
	for _, key := range e.order {
		row := e.rows[key]
		symbols = append(symbols, row.CESymbol, row.PESymbol)
	}
	return symbols
}

// subscribeAll subscribes the underlying at quote granularity and every
// option symbol at depth granularity. Pacing comes from the connection.
func (e *Engine) subscribeAll(symbols []string) error {
	if e.conn == nil {
		e.logger.Warn("no stream connection, skipping subscriptions", "underlying", e.underlying)
		return nil
	}

	if err := e.conn.Subscribe(e.underlying, IndexExchange(e.underlying), stream.ModeQuote); err != nil {
		return fmt.Errorf("subscribe underlying: %w", err)
	}

	exchange := OptionExchange(e.underlying)
	for _, sym := range symbols {
		if err := e.conn.Subscribe(sym, exchange, stream.ModeDepth); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}

	return nil
}

// OnQuoteUpdate handles quote ticks for the underlying index. Ticks for any
// other symbol are ignored. An ATM move re-tags the existing rows; the strike
// universe itself never changes after generation.
func (e *Engine) OnQuoteUpdate(t stream.Tick) {
	if t.Symbol != e.underlying || !t.LTP.IsPositive() {
		return
	}

	e.mu.Lock()
	e.underlyingLTP = t.LTP
	e.underlyingBid = t.Bid
	e.underlyingAsk = t.Ask

	oldATM := e.atm
	e.atm = model.ATMStrike(t.LTP, e.step)

	var symbols []string
	if !e.atm.Equal(oldATM) {
		if len(e.rows) == 0 {
			// First usable quote arrived before Initialize could fetch one.
			e.generateLocked()
			symbols = e.optionSymbolsLocked()
		} else {
			e.retagLocked()
		}
	}
	e.mu.Unlock()

	if len(symbols) > 0 {
		if err := e.subscribeAll(symbols); err != nil {
			e.logger.Warn("late subscription failed", "underlying", e.underlying, "error", err)
		}
	}
}

// retagLocked recomputes every row's position and tag from its fixed strike
// and the current ATM. Caller holds e.mu.
func (e *Engine) retagLocked() {
	for _, row := range e.rows {
		pos := model.PositionFor(row.Strike, e.atm, e.step)
		row.Position = pos
		row.Tag = model.TagFor(pos)
	}
}

// OnDepthUpdate handles depth ticks for option symbols. The tick's symbol is
// matched exactly against the routing table; unknown symbols are dropped
// silently. The matched side's quote is replaced as a whole.
func (e *Engine) OnDepthUpdate(t stream.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.routing[t.Symbol]
	if !ok {
		return
	}
	row, ok := e.rows[entry.strikeKey]
	if !ok {
		return
	}

	quote := model.SideQuote{
		LTP:    t.LTP,
		Bid:    t.Bid,
		Ask:    t.Ask,
		BidQty: t.BidQty,
		AskQty: t.AskQty,
		Spread: model.Spread(t.Bid, t.Ask),
		Volume: t.Volume,
		OI:     t.OI,
	}

	if entry.side == model.SideCE {
		row.CE = quote
	} else {
		row.PE = quote
	}
}

// Snapshot returns a point-in-time copy of the chain with metrics computed
// fresh. Safe to call concurrently with the update callbacks.
func (e *Engine) Snapshot() model.ChainSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	options := make([]model.StrikeRow, 0, len(e.order))
	for _, key := range e.order {
		options = append(options, *e.rows[key])
	}

	return model.ChainSnapshot{
		Underlying:    e.underlying,
		UnderlyingLTP: e.underlyingLTP,
		UnderlyingBid: e.underlyingBid,
		UnderlyingAsk: e.underlyingAsk,
		ATMStrike:     e.atm,
		Expiry:        e.expiry,
		Timestamp:     time.Now().In(istLocation).Format(time.RFC3339),
		Options:       options,
		MarketMetrics: metricsFor(options),
	}
}

// metricsFor computes chain-wide aggregates from a copied row set.
func metricsFor(options []model.StrikeRow) model.MarketMetrics {
	var m model.MarketMetrics
	for _, row := range options {
		m.TotalCEVolume += row.CE.Volume
		m.TotalPEVolume += row.PE.Volume
		m.TotalCEOI += row.CE.OI
		m.TotalPEOI += row.PE.OI
	}
	m.TotalVolume = m.TotalCEVolume + m.TotalPEVolume

	if m.TotalCEOI > 0 {
		m.PCR = decimal.NewFromInt(m.TotalPEOI).
			Div(decimal.NewFromInt(m.TotalCEOI)).
			Round(2)
	} else {
		m.PCR = decimal.Zero
	}

	return m
}

// istLocation is the snapshot timestamp zone (India Standard Time).
var istLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}()
