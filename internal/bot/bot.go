// Package bot runs the Telegram front end: a long-polling update loop that
// routes slash commands to the watchlist and arbitrage services.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/telegram"
)

// API is the subset of the Bot API the bot needs. *telegram.Client
// satisfies it.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text string) error
}

// Config holds the polling and rate-limit settings.
type Config struct {
	PollTimeout time.Duration
	RateLimit   int
	RateWindow  time.Duration
}

// Bot polls for updates and answers commands. It keeps no per-user state
// between messages.
type Bot struct {
	api      API
	commands *Commands
	limiter  domain.RateLimiter
	cfg      Config
	logger   *slog.Logger
}

// New creates a Bot. limiter may be nil to disable per-chat limits.
func New(api API, commands *Commands, limiter domain.RateLimiter, cfg Config, logger *slog.Logger) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Bot{
		api:      api,
		commands: commands,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "bot")),
	}
}

const (
	minPollBackoff = time.Second
	maxPollBackoff = 30 * time.Second
)

// Run polls until ctx is cancelled. Poll failures are logged and retried
// with exponential backoff.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "bot polling started", slog.Duration("poll_timeout", b.cfg.PollTimeout))

	var offset int64
	backoff := minPollBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WarnContext(ctx, "get updates failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}
		backoff = minPollBackoff

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			b.HandleMessage(ctx, u.Message)
		}
	}
}

// HandleMessage answers one incoming message.
func (b *Bot) HandleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	log := b.logger.With(slog.String("chat_id", chatID))

	if !b.allow(ctx, chatID) {
		log.InfoContext(ctx, "chat rate limited")
		b.send(ctx, chatID, msgRateLimited)
		return
	}

	in := Incoming{ChatID: chatID, Text: msg.Text}
	if msg.From != nil {
		in.TelegramID = strconv.FormatInt(msg.From.ID, 10)
		in.Username = msg.From.Username
		if in.Username == "" {
			in.Username = msg.From.FirstName
		}
	} else {
		in.TelegramID = chatID
	}

	start := time.Now()
	reply := b.commands.Dispatch(ctx, in)
	log.InfoContext(ctx, "command handled",
		slog.String("command", commandName(msg.Text)),
		slog.Duration("took", time.Since(start)),
	)
	b.send(ctx, chatID, reply)
}

func (b *Bot) allow(ctx context.Context, chatID string) bool {
	if b.limiter == nil {
		return true
	}
	ok, err := b.limiter.Allow(ctx, "bot:chat:"+chatID, b.cfg.RateLimit, b.cfg.RateWindow)
	if err != nil {
		b.logger.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
		return true
	}
	return ok
}

func (b *Bot) send(ctx context.Context, chatID, text string) {
	if text == "" {
		return
	}
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrRateLimited) || telegram.IsAPIError(err, 403) {
			level = slog.LevelWarn
		}
		b.logger.Log(ctx, level, "send reply failed",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}
