package stream

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a normalized market-data update delivered to handlers. Depth ticks
// carry best bid/ask with sizes; quote ticks carry top-of-book for an index.
// Missing or malformed numeric fields coerce to zero rather than rejecting
// the tick.
type Tick struct {
	Symbol     string
	LTP        decimal.Decimal
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	BidQty     int64
	AskQty     int64
	Volume     int64
	OI         int64
	ReceivedAt time.Time
}

type frameKind int

const (
	frameUnknown frameKind = iota
	frameAuth
	frameMarket
)

// frame is one classified inbound message.
type frame struct {
	kind   frameKind
	authOK bool
	mode   Mode
	tick   Tick
}

// number is a forgiving JSON scalar: accepts numbers, numeric strings, and
// null, coercing anything unparsable to zero.
type number struct {
	val decimal.Decimal
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	n.val = v
	n.set = true
	return nil
}

func (n number) dec() decimal.Decimal {
	return n.val
}

func (n number) int() int64 {
	return n.val.IntPart()
}

// level is one price level of a depth book.
type level struct {
	Price decimal.Decimal
	Qty   int64
}

var errLevelShape = errors.New("unrecognized level shape")

// parseObjectLevels decodes the list-of-objects shape:
// [{"price": 120, "quantity": 75}, ...]
func parseObjectLevels(b []byte) ([]level, error) {
	var objs []struct {
		Price    number `json:"price"`
		Quantity number `json:"quantity"`
	}
	if err := json.Unmarshal(b, &objs); err != nil {
		return nil, err
	}
	out := make([]level, 0, len(objs))
	for _, o := range objs {
		out = append(out, level{Price: o.Price.dec(), Qty: o.Quantity.int()})
	}
	return out, nil
}

// parsePairLevels decodes the list-of-pairs shape: [[120, 75], ...].
// Pairs with fewer than two elements are skipped.
func parsePairLevels(b []byte) ([]level, error) {
	var pairs [][]number
	if err := json.Unmarshal(b, &pairs); err != nil {
		return nil, err
	}
	out := make([]level, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		out = append(out, level{Price: p[0].dec(), Qty: p[1].int()})
	}
	return out, nil
}

// levels is a tagged-variant list of price levels: the feed sends either
// objects or pairs, so each shape gets its own parse function and malformed
// input degrades to empty.
type levels []level

func (l *levels) UnmarshalJSON(b []byte) error {
	if lv, err := parseObjectLevels(b); err == nil {
		*l = lv
		return nil
	}
	if lv, err := parsePairLevels(b); err == nil {
		*l = lv
		return nil
	}
	return nil
}

// envelope is the outer shape probe for classification. Symbol is kept
// because some feeds put it beside a nested "data" payload.
type envelope struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
	LTP    *number         `json:"ltp"`
}

// depthWire tolerates both buy/sell and bids/asks nesting.
type depthWire struct {
	Buy  levels `json:"buy"`
	Bids levels `json:"bids"`
	Sell levels `json:"sell"`
	Asks levels `json:"asks"`
}

// tickWire is the inner market-data shape with all known field aliases.
type tickWire struct {
	Symbol        string `json:"symbol"`
	SymbolTitle   string `json:"Symbol"`
	TradingSymbol string `json:"trading_symbol"`

	LTP       *number `json:"ltp"`
	LastPrice *number `json:"last_price"`
	Open      *number `json:"open"`
	Bid       number  `json:"bid"`
	Ask       number  `json:"ask"`
	Volume    number  `json:"volume"`
	OI        number  `json:"oi"`

	Depth *depthWire `json:"depth"`
	Bids  levels     `json:"bids"`
	Asks  levels     `json:"asks"`

	hasBids bool
}

func (w *tickWire) UnmarshalJSON(b []byte) error {
	type plain tickWire
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*w = tickWire(p)

	// Presence of a "bids" key, even an empty one, marks a depth tick.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err == nil {
		_, w.hasBids = keys["bids"]
	}
	return nil
}

func (w *tickWire) symbol() string {
	if w.Symbol != "" {
		return w.Symbol
	}
	if w.SymbolTitle != "" {
		return w.SymbolTitle
	}
	return w.TradingSymbol
}

func (w *tickWire) ltp() decimal.Decimal {
	if w.LTP != nil && w.LTP.set {
		return w.LTP.dec()
	}
	if w.LastPrice != nil {
		return w.LastPrice.dec()
	}
	return decimal.Zero
}

// bestLevels returns best bid and ask, preferring the nested depth object
// over flat bids/asks lists.
func (w *tickWire) bestLevels() (bid, ask level) {
	bids, asks := w.Bids, w.Asks
	if w.Depth != nil {
		bids, asks = w.Depth.Buy, w.Depth.Sell
		if len(bids) == 0 {
			bids = w.Depth.Bids
		}
		if len(asks) == 0 {
			asks = w.Depth.Asks
		}
	}
	if len(bids) > 0 {
		bid = bids[0]
	}
	if len(asks) > 0 {
		ask = asks[0]
	}
	return bid, ask
}

// decodeFrame classifies one inbound message and, for market data, decodes it
// into a normalized Tick with its mode.
func decodeFrame(data []byte, receivedAt time.Time) frame {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return frame{kind: frameUnknown}
	}

	if env.Type == "auth" {
		return frame{kind: frameAuth, authOK: env.Status == "success"}
	}

	if env.Type != "market_data" && env.LTP == nil {
		return frame{kind: frameUnknown}
	}

	// Payload may be nested under "data" or flat.
	payload := data
	if len(env.Data) > 0 && env.Data[0] == '{' {
		payload = env.Data
	}

	var w tickWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return frame{kind: frameUnknown}
	}

	mode := ModeLTP
	switch {
	case w.Depth != nil || w.hasBids:
		mode = ModeDepth
	case w.Open != nil:
		mode = ModeQuote
	}

	symbol := w.symbol()
	if symbol == "" {
		symbol = env.Symbol
	}

	tick := Tick{
		Symbol:     symbol,
		LTP:        w.ltp(),
		Volume:     w.Volume.int(),
		OI:         w.OI.int(),
		ReceivedAt: receivedAt,
	}

	switch mode {
	case ModeDepth:
		bid, ask := w.bestLevels()
		tick.Bid, tick.BidQty = bid.Price, bid.Qty
		tick.Ask, tick.AskQty = ask.Price, ask.Qty
	case ModeQuote:
		tick.Bid = w.Bid.dec()
		tick.Ask = w.Ask.dec()
	}

	return frame{kind: frameMarket, mode: mode, tick: tick}
}
