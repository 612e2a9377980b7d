package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quailyquaily/lwherd/lwapi"
	"github.com/quailyquaily/lwherd/runner"
)

type replyConfig struct {
	GreetingEnabled bool
	MenuEnabled     bool
}

var greetingWords = []string{"hi", "hello", "你好", "在吗", "在么"}

const (
	greetingReply = "Hi! I'm online. Send /menu to see what I can do."
	menuReply     = "Commands:\n/menu - show this menu\n/ping - liveness check"
	pingReply     = "pong"
)

// newReplyHandler builds the default message handler: it logs every incoming
// message and answers text messages with a small fixed set of replies. Send
// failures are logged per message so one unreachable peer cannot poison the
// rest of the batch.
func newReplyHandler(logger *slog.Logger, cfg replyConfig) runner.Handler {
	return func(ctx context.Context, client *lwapi.Client, msgs []lwapi.Message) error {
		log := logger.With("account", client.Session().Wxid())
		for i := range msgs {
			msg := &msgs[i]
			sender := msg.Sender()
			if msg.MsgType != lwapi.MsgTypeText {
				log.Debug("message_skipped", "from", sender, "msg_type", msg.MsgType)
				continue
			}
			text := msg.Text()
			log.Info("message_received", "from", sender, "text_len", len(text), "sent_at", msg.SentAt())

			reply := pickReply(text, cfg)
			if reply == "" {
				continue
			}
			if err := client.SendText(ctx, sender, reply, ""); err != nil {
				log.Warn("reply_send_error", "to", sender, "error", err.Error())
			}
		}
		return nil
	}
}

func pickReply(text string, cfg replyConfig) string {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "/ping":
		return pingReply
	case cfg.MenuEnabled && (t == "/menu" || t == "/help"):
		return menuReply
	case cfg.GreetingEnabled && isGreeting(t):
		return greetingReply
	default:
		return ""
	}
}

func isGreeting(t string) bool {
	for _, w := range greetingWords {
		if t == w {
			return true
		}
	}
	return false
}
