package chain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// symbolYear is the 2-digit year segment of broker option symbols. The
// upstream symbol format hardcodes it; changing it breaks routing.
const symbolYear = "25"

// Underlyings with non-default routing.
const underlyingSensex = "SENSEX"

var monthOrder = []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

var months = func() map[string]bool {
	m := make(map[string]bool, len(monthOrder))
	for _, mon := range monthOrder {
		m[mon] = true
	}
	return m
}()

// IndexExchange returns the exchange for an underlying's index quote.
func IndexExchange(underlying string) string {
	if underlying == underlyingSensex {
		return "BSE_INDEX"
	}
	return "NSE_INDEX"
}

// OptionExchange returns the derivatives exchange for an underlying.
func OptionExchange(underlying string) string {
	if underlying == underlyingSensex {
		return "BFO"
	}
	return "NFO"
}

// StrikeStep returns the strike interval for an underlying.
func StrikeStep(underlying string) decimal.Decimal {
	if underlying == "NIFTY" {
		return decimal.NewFromInt(50)
	}
	return decimal.NewFromInt(100)
}

// parseExpiry normalizes an expiry value to the DDMon symbol segment
// (e.g. "28AUG"). Accepted shapes:
//
//	"28-AUG-25"  — dash-separated broker form
//	"28AUG25"    — month token embedded, optional leading day digits
//	"2025-08-28" — ISO calendar date
//
// Anything else is a validation error; there is no silent fallback date.
func parseExpiry(expiry string) (string, error) {
	s := strings.TrimSpace(expiry)
	if s == "" {
		return "", fmt.Errorf("empty expiry")
	}

	if parts := strings.Split(s, "-"); len(parts) >= 2 {
		day := parts[0]
		mon := strings.ToUpper(parts[1])
		if len(mon) >= 3 && months[mon[:3]] && len(day) <= 2 && isDigits(day) {
			if len(day) == 1 {
				day = "0" + day
			}
			return day + mon[:3], nil
		}
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return formatExpiryDate(t), nil
	}

	// Month token embedded somewhere in the string, day digits just before it.
	clean := strings.ToUpper(strings.ReplaceAll(s, "-", ""))
	for _, mon := range monthOrder {
		idx := strings.Index(clean, mon)
		if idx < 0 {
			continue
		}
		day := ""
		start := idx - 2
		if start < 0 {
			start = 0
		}
		day = clean[start:idx]
		if day == "" || !isDigits(day) {
			day = "01"
		}
		if len(day) == 1 {
			day = "0" + day
		}
		return day + mon, nil
	}

	return "", fmt.Errorf("unparsable expiry %q", expiry)
}

// formatExpiryDate renders a calendar date as the DDMon symbol segment.
func formatExpiryDate(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan"))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// optionSymbol constructs the broker trading symbol for a strike and side:
// {underlying}{DDMon}{YY}{strike}{CE|PE}. Must stay bit-exact for broker
// compatibility; integral strikes render without a trailing ".0".
func optionSymbol(underlying, expirySegment string, strike decimal.Decimal, side string) string {
	return underlying + expirySegment + symbolYear + strike.String() + side
}
