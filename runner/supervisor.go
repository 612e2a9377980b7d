package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quailyquaily/lwherd/accounts"
	"github.com/quailyquaily/lwherd/login"
	"github.com/quailyquaily/lwherd/lwapi"
)

// Supervisor runs one account's whole lifetime: login with fixed-backoff
// retries, then heartbeat + poller until the session dies or the process
// shuts down. Nothing escapes Run; sibling accounts never see this one fail.
type Supervisor struct {
	Account   accounts.Account
	Config    Config
	Store     *accounts.Store
	Registry  *Registry
	Handler   Handler
	PresentQR func(loginURL string)
	Logger    *slog.Logger
}

func (s *Supervisor) Run(ctx context.Context) {
	cfg := s.Config.withDefaults()
	label := s.Account.Label()
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("account", label)

	saved := s.Account.Wxid
	for ctx.Err() == nil {
		client := lwapi.NewClient(lwapi.Config{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.RequestTimeout,
		})
		flow := &login.Flow{
			Client:         client,
			DeviceID:       s.Account.DeviceID,
			Proxy:          s.Account.Proxy,
			Remark:         label,
			Logger:         s.Logger,
			PresentQR:      s.PresentQR,
			QRPollInterval: cfg.QRPollInterval,
			QRDeadline:     cfg.QRDeadline,
		}

		wxid, err := flow.Run(ctx, saved)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("login_failed", "error", err.Error(), "retry_in", cfg.RetryBackoff.String())
			if !waitInterruptible(ctx, nil, cfg.RetryBackoff) {
				return
			}
			continue
		}

		if wxid != saved {
			if err := s.Store.SaveWxid(ctx, s.Account.DeviceID, wxid); err != nil {
				log.Warn("account_save_failed", "error", err.Error())
			}
			saved = wxid
		}

		hb := NewHeartbeat(client, label, cfg.HeartbeatInterval, cfg.HeartbeatRetryWait, s.Logger)
		poller := NewPoller(client, label, cfg.PollIdle, cfg.PollErrWait, s.Logger)

		s.Registry.Put(&Active{
			Wxid:      wxid,
			Remark:    label,
			Client:    client,
			StartedAt: time.Now(),
		})
		hb.Start(ctx)
		poller.Start(ctx, s.Handler)
		log.Info("account_online", "wxid", wxid)

		select {
		case <-ctx.Done():
			poller.Stop()
			hb.Stop()
			s.Registry.Remove(wxid)
			s.logout(client, log)
			log.Info("account_offline", "reason", "shutdown")
			return
		case <-hb.Invalid():
			poller.Stop()
			hb.Stop()
			s.Registry.Remove(wxid)
			log.Warn("account_session_invalid", "wxid", wxid)
			// Keep the cached wxid: the next attempt tries fast re-auth
			// first and falls back to QR when the server rejects it.
		}
	}
}

// logout is best effort; the run context is already dead by the time we get
// here, so it gets its own short deadline.
func (s *Supervisor) logout(client *lwapi.Client, log *slog.Logger) {
	if !client.Session().LoggedIn() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.withDefaults().LogoutTimeout)
	defer cancel()
	if err := client.Logout(ctx); err != nil {
		log.Debug("logout_error", "error", err.Error())
	}
}

// Orchestrator fans out one supervisor goroutine per configured account and
// waits for all of them, so cached tokens are persisted before the process
// exits.
type Orchestrator struct {
	Accounts  []accounts.Account
	Config    Config
	Store     *accounts.Store
	Registry  *Registry
	Handler   Handler
	PresentQR func(loginURL string)
	Logger    *slog.Logger
}

func (o *Orchestrator) Run(ctx context.Context) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("orchestrator_started", "accounts", len(o.Accounts))

	var wg sync.WaitGroup
	for _, acc := range o.Accounts {
		wg.Add(1)
		go func(acc accounts.Account) {
			defer wg.Done()
			sup := &Supervisor{
				Account:   acc,
				Config:    o.Config,
				Store:     o.Store,
				Registry:  o.Registry,
				Handler:   o.Handler,
				PresentQR: o.PresentQR,
				Logger:    o.Logger,
			}
			sup.Run(ctx)
		}(acc)
	}
	wg.Wait()
	log.Info("orchestrator_stopped")
}
