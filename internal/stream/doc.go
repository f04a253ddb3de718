// Package stream implements the StreamConnection component.
//
// A Conn owns one long-lived websocket to the OpenAlgo market-data server:
//   - Authenticate-then-subscribe handshake with explicit readiness signaling
//   - Paced subscribe sends, deduplicated for resubscribe-all
//   - Demultiplexes inbound frames into auth / depth / quote / ltp
//   - Reconnects with capped exponential backoff and jitter, then resubscribes
package stream
