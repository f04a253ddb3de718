package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort            = 5800
	DefaultStreamInterval  = 1 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultRestURL    = "http://localhost:5000"
	DefaultWSURL      = "ws://localhost:8765"
	DefaultAPITimeout = 30 * time.Second
	DefaultMaxRetries = 3

	DefaultConnectTimeout       = 10 * time.Second
	DefaultSubscribeInterval    = 50 * time.Millisecond
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultMaxReconnectAttempts = 20
	DefaultPingTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultBufferSize           = 1000

	DefaultCacheTTL  = 30 * time.Second
	DefaultCacheSize = 100
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.StreamInterval == 0 {
		c.Server.StreamInterval = DefaultStreamInterval
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.ConnectTimeout == 0 {
		c.Stream.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Stream.SubscribeInterval == 0 {
		c.Stream.SubscribeInterval = DefaultSubscribeInterval
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Chain defaults
	if c.Chain.CacheTTL == 0 {
		c.Chain.CacheTTL = DefaultCacheTTL
	}
	if c.Chain.CacheSize == 0 {
		c.Chain.CacheSize = DefaultCacheSize
	}
}
