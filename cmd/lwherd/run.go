package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quailyquaily/lwherd/accounts"
	"github.com/quailyquaily/lwherd/internal/qrterm"
	"github.com/quailyquaily/lwherd/runner"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in every configured account and poll for messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			baseURL := flagOrViperString(cmd, "base-url", "lw.base_url")
			accountsPath := flagOrViperString(cmd, "accounts", "lw.accounts_file")

			cfg := runner.Config{
				BaseURL:            baseURL,
				RequestTimeout:     flagOrViperDuration(cmd, "request-timeout", "lw.request_timeout"),
				HeartbeatInterval:  flagOrViperDuration(cmd, "heartbeat-interval", "heartbeat.interval"),
				HeartbeatRetryWait: flagOrViperDuration(cmd, "heartbeat-retry-wait", "heartbeat.retry_wait"),
				PollIdle:           flagOrViperDuration(cmd, "poll-idle-wait", "poll.idle_wait"),
				PollErrWait:        flagOrViperDuration(cmd, "poll-error-wait", "poll.error_wait"),
				QRPollInterval:     flagOrViperDuration(cmd, "qr-poll-interval", "qr.poll_interval"),
				QRDeadline:         flagOrViperDuration(cmd, "qr-deadline", "qr.deadline"),
				RetryBackoff:       flagOrViperDuration(cmd, "retry-backoff", "retry_backoff"),
				LogoutTimeout:      flagOrViperDuration(cmd, "logout-timeout", "logout_timeout"),
			}

			store := accounts.NewStore(accountsPath)
			list, err := store.Load(cmd.Context())
			if errors.Is(err, accounts.ErrCreatedPlaceholder) {
				_, _ = fmt.Fprintf(os.Stderr, "Created %s with a placeholder account.\nEdit it (set remark, optional wxid/proxy) and run again.\n", store.Path())
				return err
			}
			if err != nil {
				return fmt.Errorf("load accounts: %w", err)
			}
			if len(list) == 0 {
				return fmt.Errorf("no accounts configured in %s", store.Path())
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry := runner.NewRegistry()
			orch := &runner.Orchestrator{
				Accounts: list,
				Config:   cfg,
				Store:    store,
				Registry: registry,
				Handler: newReplyHandler(logger, replyConfig{
					GreetingEnabled: flagOrViperBool(cmd, "reply-greeting", "reply.greeting_enabled"),
					MenuEnabled:     flagOrViperBool(cmd, "reply-menu", "reply.menu_enabled"),
				}),
				PresentQR: func(loginURL string) {
					qrterm.Print(os.Stderr, loginURL)
				},
				Logger: logger,
			}

			logger.Info("run_start", "base_url", baseURL, "accounts", len(list))
			orch.Run(runCtx)
			logger.Info("run_exit", "active_at_exit", registry.Len())
			return nil
		},
	}

	cmd.Flags().String("base-url", "", "Base URL of the lw API gateway.")
	cmd.Flags().String("accounts", "", "Path to the accounts JSON file.")
	cmd.Flags().Duration("request-timeout", 0, "Per-request HTTP timeout.")
	cmd.Flags().Duration("heartbeat-interval", 0, "Interval between heartbeats.")
	cmd.Flags().Duration("heartbeat-retry-wait", 0, "Wait after a transient heartbeat failure.")
	cmd.Flags().Duration("poll-idle-wait", 0, "Wait after an empty or delivered poll.")
	cmd.Flags().Duration("poll-error-wait", 0, "Wait after a non-timeout poll error.")
	cmd.Flags().Duration("qr-poll-interval", 0, "Interval between QR status checks.")
	cmd.Flags().Duration("qr-deadline", 0, "How long to wait for a QR scan before giving up.")
	cmd.Flags().Duration("retry-backoff", 0, "Wait between failed login attempts.")
	cmd.Flags().Duration("logout-timeout", 0, "Bound for the best-effort logout on shutdown.")
	cmd.Flags().Bool("reply-greeting", true, "Auto-reply to greetings.")
	cmd.Flags().Bool("reply-menu", true, "Reply with the command menu on /menu or /help.")

	return cmd
}
