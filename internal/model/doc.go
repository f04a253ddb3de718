// Package model defines the option-chain domain types shared across chainfeed.
//
// Conventions:
//   - Prices and strikes: decimal.Decimal (broker feeds mix float and string prices)
//   - Quantities, volume, open interest: int64
//   - JSON field names follow the OpenAlgo snapshot contract consumed downstream
package model
