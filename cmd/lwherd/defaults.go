package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// API endpoint
	viper.SetDefault("lw.base_url", "http://127.0.0.1:8059")
	viper.SetDefault("lw.accounts_file", "accounts.json")
	viper.SetDefault("lw.request_timeout", 10*time.Second)

	// Heartbeat
	viper.SetDefault("heartbeat.interval", 20*time.Second)
	viper.SetDefault("heartbeat.retry_wait", 5*time.Second)

	// Message polling
	viper.SetDefault("poll.idle_wait", 1*time.Second)
	viper.SetDefault("poll.error_wait", 2*time.Second)

	// QR login
	viper.SetDefault("qr.poll_interval", 5*time.Second)
	viper.SetDefault("qr.deadline", 300*time.Second)

	// Supervision
	viper.SetDefault("retry_backoff", 10*time.Second)
	viper.SetDefault("logout_timeout", 5*time.Second)

	// Auto-reply
	viper.SetDefault("reply.greeting_enabled", true)
	viper.SetDefault("reply.menu_enabled", true)
}
