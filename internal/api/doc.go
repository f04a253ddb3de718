// Package api provides the OpenAlgo REST client used to bootstrap option chains.
//
// Endpoints used:
//   - POST /api/v1/quotes — one-shot quote for the underlying index
//   - POST /api/v1/expiry — available option expiry dates for an underlying
//
// All requests carry the api key in the JSON body, per the OpenAlgo contract.
// A response with a non-"success" status is returned as a *StatusError, a
// recoverable failure, never a panic across the package boundary.
package api
