package sse

import "time"

// Config holds SSE connection settings.
type Config struct {
	// KeepAliveInterval is how often a comment line is sent while no events flow.
	KeepAliveInterval time.Duration
}

// DefaultConfig returns a 10 second keep-alive, short enough for common proxies.
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
	}
}
