package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quailyquaily/lwherd/lwapi"
)

// Heartbeat keeps one account's server-side session alive with a periodic
// keep-alive call. Network trouble is retried forever; a session-invalid
// business error terminates the worker and fires Invalid so the supervisor
// can re-login. At most one worker runs per Heartbeat value: Start replaces
// any previous worker after fully stopping it, Stop is idempotent.
type Heartbeat struct {
	client    *lwapi.Client
	interval  time.Duration
	retryWait time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	invalid chan struct{}
}

func NewHeartbeat(client *lwapi.Client, remark string, interval, retryWait time.Duration, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if retryWait <= 0 {
		retryWait = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		client:    client,
		interval:  interval,
		retryWait: retryWait,
		logger:    logger.With("account", remark),
	}
}

// Start launches the worker, replacing a running one. The old worker is fully
// stopped before the new one exists, so two never beat concurrently.
func (h *Heartbeat) Start(ctx context.Context) {
	h.Stop()

	h.mu.Lock()
	h.running = true
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	h.invalid = make(chan struct{})
	stop, done, invalid := h.stop, h.done, h.invalid
	h.mu.Unlock()

	go h.loop(ctx, stop, done, invalid)
}

// Stop halts the worker and waits for it to finish. Calling it again, or on a
// worker that already terminated itself, is a no-op.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stop)
	done := h.done
	h.mu.Unlock()
	<-done
}

func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Invalid is closed when a beat reports the session is dead. A nil channel
// (never started) blocks forever, which is the right behavior for select.
func (h *Heartbeat) Invalid() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalid
}

func (h *Heartbeat) loop(ctx context.Context, stop, done, invalid chan struct{}) {
	defer func() {
		h.mu.Lock()
		if h.stop == stop {
			h.running = false
		}
		h.mu.Unlock()
		close(done)
	}()

	h.logger.Info("heartbeat_started", "interval", h.interval.String())
	for {
		if !waitInterruptible(ctx, stop, h.interval) {
			h.logger.Info("heartbeat_stopped")
			return
		}
		err := h.client.Heartbeat(ctx)
		switch {
		case err == nil:
			h.logger.Debug("heartbeat_ok")
		case lwapi.IsSessionInvalid(err):
			h.logger.Warn("heartbeat_session_invalid", "error", err.Error())
			close(invalid)
			return
		case ctx.Err() != nil:
			h.logger.Info("heartbeat_stopped")
			return
		default:
			h.logger.Warn("heartbeat_error", "error", err.Error())
			if !waitInterruptible(ctx, stop, h.retryWait) {
				h.logger.Info("heartbeat_stopped")
				return
			}
		}
	}
}
