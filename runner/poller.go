package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quailyquaily/lwherd/lwapi"
)

// Poller long-polls Msg/Sync and feeds non-empty batches to the registered
// handler. The long poll's own timeout is the normal idle outcome and is
// retried immediately; real errors back off briefly. Handler failures are
// logged and never stop the loop.
//
// Unlike Heartbeat, starting a running poller is a warn-and-skip no-op:
// handler identity rarely changes mid-run and an accidental double start
// must not drop the live loop.
type Poller struct {
	client  *lwapi.Client
	idle    time.Duration
	errWait time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewPoller(client *lwapi.Client, remark string, idle, errWait time.Duration, logger *slog.Logger) *Poller {
	if idle <= 0 {
		idle = time.Second
	}
	if errWait <= 0 {
		errWait = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:  client,
		idle:    idle,
		errWait: errWait,
		logger:  logger.With("account", remark),
	}
}

func (p *Poller) Start(ctx context.Context, handler Handler) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.logger.Warn("poller_already_running")
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stop, p.done
	p.mu.Unlock()

	go p.loop(ctx, stop, done, handler)
}

// Stop halts the loop and waits for it. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()
	<-done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, stop, done chan struct{}, handler Handler) {
	defer func() {
		p.mu.Lock()
		if p.stop == stop {
			p.running = false
		}
		p.mu.Unlock()
		close(done)
	}()

	p.logger.Info("poller_started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller_stopped")
			return
		case <-stop:
			p.logger.Info("poller_stopped")
			return
		default:
		}

		res, err := p.client.SyncMessages(ctx)
		switch {
		case err == nil:
			if len(res.AddMsgs) > 0 {
				p.logger.Info("poller_batch", "count", len(res.AddMsgs))
				p.dispatch(ctx, handler, res.AddMsgs)
			}
			if !waitInterruptible(ctx, stop, p.idle) {
				p.logger.Info("poller_stopped")
				return
			}
		case lwapi.IsTimeout(err):
			// Long-poll window elapsed with nothing new; go right back.
		case ctx.Err() != nil:
			p.logger.Info("poller_stopped")
			return
		default:
			p.logger.Warn("poller_sync_error", "error", err.Error())
			if !waitInterruptible(ctx, stop, p.errWait) {
				p.logger.Info("poller_stopped")
				return
			}
		}
	}
}

// dispatch isolates one batch: a handler error is logged, a handler panic is
// recovered. Either way the next poll happens.
func (p *Poller) dispatch(ctx context.Context, handler Handler, msgs []lwapi.Message) {
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poller_handler_panic", "panic", r)
		}
	}()
	if err := handler(ctx, p.client, msgs); err != nil {
		p.logger.Warn("poller_handler_error", "error", err.Error())
	}
}
