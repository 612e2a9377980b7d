// Package runner owns the per-account session lifecycle: a supervision loop
// that logs the account in, keeps the session alive with a heartbeat worker,
// long-polls for messages, and starts over with a fixed backoff whenever any
// of that dies. Accounts are fully isolated from each other; the only shared
// state is the active-account registry.
package runner

import (
	"context"
	"time"

	"github.com/quailyquaily/lwherd/lwapi"
)

// Handler receives each non-empty batch of new messages. Its errors and
// panics are contained at the poller; its latency delays the next poll for
// its own account only.
type Handler func(ctx context.Context, client *lwapi.Client, msgs []lwapi.Message) error

// Config carries the tunables shared by every account task. Zero values fall
// back to the defaults noted per field.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration // per-request bound, 10s

	HeartbeatInterval  time.Duration // 20s
	HeartbeatRetryWait time.Duration // 5s

	PollIdle    time.Duration // 1s, between successful polls
	PollErrWait time.Duration // 2s, after a non-timeout poll error

	QRPollInterval time.Duration // 5s
	QRDeadline     time.Duration // 300s

	RetryBackoff  time.Duration // 10s, between failed login attempts
	LogoutTimeout time.Duration // 5s, best-effort logout on shutdown
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, fallback time.Duration) {
		if *d <= 0 {
			*d = fallback
		}
	}
	def(&c.RequestTimeout, 10*time.Second)
	def(&c.HeartbeatInterval, 20*time.Second)
	def(&c.HeartbeatRetryWait, 5*time.Second)
	def(&c.PollIdle, time.Second)
	def(&c.PollErrWait, 2*time.Second)
	def(&c.QRPollInterval, 5*time.Second)
	def(&c.QRDeadline, 300*time.Second)
	def(&c.RetryBackoff, 10*time.Second)
	def(&c.LogoutTimeout, 5*time.Second)
	return c
}

// waitInterruptible sleeps for d unless the context or the stop channel fires
// first. Reports whether the full wait elapsed.
func waitInterruptible(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
