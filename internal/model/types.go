package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Option sides.
const (
	SideCE = "CE"
	SidePE = "PE"
)

// -----------------------------------------------------------------------------
// Chain Types
// -----------------------------------------------------------------------------

// SideQuote is the market state for one side (CE or PE) of a strike.
// A depth update replaces the whole struct, never individual fields.
type SideQuote struct {
	LTP    decimal.Decimal `json:"ltp"`     // Last traded price
	Bid    decimal.Decimal `json:"bid"`     // Best bid price
	Ask    decimal.Decimal `json:"ask"`     // Best ask price
	BidQty int64           `json:"bid_qty"` // Size at best bid
	AskQty int64           `json:"ask_qty"` // Size at best ask
	Spread decimal.Decimal `json:"spread"`  // Ask - Bid when both positive, else 0
	Volume int64           `json:"volume"`  // Total traded volume
	OI     int64           `json:"oi"`      // Open interest
}

// StrikeRow is one row of the option chain. Rows are created in bulk when the
// strike grid is generated and persist across ATM moves; only Tag and Position
// are recomputed afterwards.
type StrikeRow struct {
	Strike   decimal.Decimal `json:"strike"`
	Tag      string          `json:"tag"`      // "ITMn", "ATM", or "OTMn"
	Position int             `json:"position"` // Signed offset in strike-steps from ATM
	CESymbol string          `json:"ce_symbol"`
	PESymbol string          `json:"pe_symbol"`
	CE       SideQuote       `json:"ce_data"`
	PE       SideQuote       `json:"pe_data"`
}

// MarketMetrics are chain-wide aggregates computed fresh on every snapshot.
type MarketMetrics struct {
	TotalCEVolume int64           `json:"total_ce_volume"`
	TotalPEVolume int64           `json:"total_pe_volume"`
	TotalVolume   int64           `json:"total_volume"`
	TotalCEOI     int64           `json:"total_ce_oi"`
	TotalPEOI     int64           `json:"total_pe_oi"`
	PCR           decimal.Decimal `json:"pcr"` // Put-call ratio, 2dp, 0 when CE OI is 0
}

// ChainSnapshot is a point-in-time, read-only copy of a chain.
type ChainSnapshot struct {
	Underlying    string          `json:"underlying"`
	UnderlyingLTP decimal.Decimal `json:"underlying_ltp"`
	UnderlyingBid decimal.Decimal `json:"underlying_bid"`
	UnderlyingAsk decimal.Decimal `json:"underlying_ask"`
	ATMStrike     decimal.Decimal `json:"atm_strike"`
	Expiry        string          `json:"expiry"`
	Timestamp     string          `json:"timestamp"` // ISO-8601, India Standard Time
	Options       []StrikeRow     `json:"options"`
	MarketMetrics MarketMetrics   `json:"market_metrics"`
}

// -----------------------------------------------------------------------------
// Strike Math
// -----------------------------------------------------------------------------

// ATMStrike returns the at-the-money strike for an underlying price:
// round(ltp / step) * step, always a multiple of step. Rounds half to even,
// so an LTP exactly between two strikes resolves to the even multiple
// (24525 at step 50 is ATM 24500, not 24550).
func ATMStrike(ltp, step decimal.Decimal) decimal.Decimal {
	return ltp.Div(step).RoundBank(0).Mul(step)
}

// PositionFor returns the signed strike-step offset of a strike from ATM.
// Floor division, so strikes below a non-aligned ATM still come out negative.
func PositionFor(strike, atm, step decimal.Decimal) int {
	return int(strike.Sub(atm).Div(step).Floor().IntPart())
}

// TagFor returns the moneyness tag for a position offset.
func TagFor(position int) string {
	switch {
	case position == 0:
		return "ATM"
	case position > 0:
		return fmt.Sprintf("OTM%d", position)
	default:
		return fmt.Sprintf("ITM%d", -position)
	}
}

// Spread returns ask-bid when both sides are positive, else zero.
func Spread(bid, ask decimal.Decimal) decimal.Decimal {
	if bid.IsPositive() && ask.IsPositive() {
		return ask.Sub(bid)
	}
	return decimal.Zero
}
