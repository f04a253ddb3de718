package api

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is a one-shot quote for an instrument.
type Quote struct {
	LTP decimal.Decimal `json:"ltp"`
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// quoteResponse is the wire envelope for POST /api/v1/quotes.
type quoteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    Quote  `json:"data"`
}

// expiryResponse is the wire envelope for POST /api/v1/expiry.
type expiryResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Data    []string `json:"data"`
}

// Quotes fetches the current quote for a symbol on an exchange.
// A non-"success" upstream status is returned as a *StatusError.
func (c *Client) Quotes(ctx context.Context, symbol, exchange string) (Quote, error) {
	var resp quoteResponse
	err := c.post(ctx, "/api/v1/quotes", map[string]any{
		"symbol":   symbol,
		"exchange": exchange,
	}, &resp)
	if err != nil {
		return Quote{}, err
	}

	if resp.Status != "success" {
		return Quote{}, &StatusError{Status: resp.Status, Message: resp.Message}
	}

	return resp.Data, nil
}

// Expiry fetches available expiry dates for an underlying's derivatives.
// Dates come back in the broker's "DD-MON-YY" form, nearest first.
func (c *Client) Expiry(ctx context.Context, symbol, exchange, instrumentType string) ([]string, error) {
	var resp expiryResponse
	err := c.post(ctx, "/api/v1/expiry", map[string]any{
		"symbol":         symbol,
		"exchange":       exchange,
		"instrumenttype": instrumentType,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != "success" {
		return nil, &StatusError{Status: resp.Status, Message: resp.Message}
	}

	return resp.Data, nil
}
