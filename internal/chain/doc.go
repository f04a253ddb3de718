// Package chain implements the ChainEngine component.
//
// An Engine owns one option chain for an (underlying, expiry) pair: the
// strike grid around the at-the-money strike, the symbol routing table, and
// the snapshot read path. Ticks arrive through the stream handlers; snapshots
// may be read concurrently at any time.
//
// The strike universe is fixed at generation time: when the underlying moves,
// rows are only re-tagged, never added or removed. If price leaves the
// generated window, no new strikes appear.
package chain
