package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrConnectTimeout   = errors.New("timed out waiting for auth ack")
	ErrAuthFailed       = errors.New("authentication rejected")
	ErrAlreadyClosed    = errors.New("connection already closed")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
)

// Mode is the subscription granularity for an instrument.
type Mode string

const (
	ModeLTP   Mode = "ltp"
	ModeQuote Mode = "quote"
	ModeDepth Mode = "depth"
)

// Code returns the wire code for a mode (ltp=1, quote=2, depth=3).
func (m Mode) Code() int {
	switch m {
	case ModeQuote:
		return 2
	case ModeDepth:
		return 3
	default:
		return 1
	}
}

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateOpen          State = "open" // Socket up, not yet authenticated
	StateAuthenticated State = "authenticated"
	StateClosed        State = "closed"
)

// Handler receives decoded ticks for one mode, in registration order.
type Handler func(Tick)

// authMessage is the outbound authenticate request.
type authMessage struct {
	Action string `json:"action"` // "authenticate"
	APIKey string `json:"api_key"`
}

// subscribeMessage is the outbound subscribe request.
type subscribeMessage struct {
	Action   string `json:"action"` // "subscribe"
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Mode     int    `json:"mode"`
	Depth    int    `json:"depth"` // Always 5
}

// subscription records one requested subscription for resubscribe-all.
type subscription struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Mode     Mode   `json:"mode"`
}

// key is the serialized dedup form of a subscription.
func (s subscription) key() string {
	data, _ := json.Marshal(s)
	return string(data)
}

// message builds the wire subscribe request for this subscription.
func (s subscription) message() []byte {
	data, _ := json.Marshal(subscribeMessage{
		Action:   "subscribe",
		Symbol:   s.Symbol,
		Exchange: s.Exchange,
		Mode:     s.Mode.Code(),
		Depth:    5,
	})
	return data
}

// mustJSON marshals a value that cannot fail (fixed wire structs).
func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// ConnConfig configures a stream connection.
type ConnConfig struct {
	URL                  string        // Websocket URL
	APIKey               string        // Sent in the authenticate message
	ConnectTimeout       time.Duration // Bounded wait for the auth ack
	SubscribeInterval    time.Duration // Pacing between subscribe sends
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int // 0 = retry forever
	PingTimeout          time.Duration
	WriteTimeout         time.Duration
	BufferSize           int // Inbound message channel size
}

// DefaultConnConfig returns sensible defaults.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		ConnectTimeout:       10 * time.Second,
		SubscribeInterval:    50 * time.Millisecond,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		MaxReconnectAttempts: 20,
		PingTimeout:          60 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1000,
	}
}
