// Package timeout defines the default time budgets of model calls and of the requests
// that wrap them.
package timeout

import "time"

const (
	// GenerationTimeout bounds a single model call when ai.timeout is not set.
	GenerationTimeout = 60 * time.Second

	// RequestTimeout bounds a whole chat or quiz request: context load, the model call
	// and the final transaction.
	RequestTimeout = GenerationTimeout + 15*time.Second

	// ShutdownTimeout is how long the HTTP server waits for in-flight requests.
	ShutdownTimeout = 20 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// Truncate shortens s to MaxTruncateLength runes for logging.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTruncateLength {
		return s
	}
	return string(runes[:MaxTruncateLength]) + "..."
}
