// Package live serves the most recent capture over HTTP and WebSocket.
package live

import "time"

const (
	// Per-connection message rate limiting for WebSocket clients.
	RateLimitMessages = 5
	RateLimitWindow   = time.Second

	// Maximum rows returned by the history endpoint.
	HistoryLimit = 50

	// Capture interval floor; faster rates just hammer the instrument.
	MinInterval = 100 * time.Millisecond
)
