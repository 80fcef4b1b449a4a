package orchestrator

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrRetriesExhausted indicates a unit failed transiently on every
	// allowed attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrTimedOut indicates the per-call wall-clock cap fired. Timeouts are
	// counted as failures and never retried within the same call.
	ErrTimedOut = errors.New("operation timed out")

	// ErrEmptyResponse indicates the agent finished without producing the
	// artifact the operation needed.
	ErrEmptyResponse = errors.New("agent produced no output")
)

// transientMarkers are message fragments that mark an error as likely to
// succeed on retry: rate limiting, 5xx-style failures, flaky transport.
var transientMarkers = []string{
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"overloaded",
	"temporarily",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected eof",
}

// isTransient classifies a provider failure. Network-level timeouts and
// resets, and rate-limit/5xx-shaped messages, are transient; everything
// else fails immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
