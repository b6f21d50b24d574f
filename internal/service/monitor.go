package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
)

const scanLockKey = "monitor:scan"

// ChatSender delivers a text message to a Telegram chat.
// *telegram.Client satisfies it.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Notifier forwards operator events. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MonitorConfig holds the scan schedule and alert thresholds.
type MonitorConfig struct {
	Interval      time.Duration
	Capital       decimal.Decimal
	MinProfitPct  decimal.Decimal
	AlertCooldown time.Duration
	Concurrency   int
}

// ScanStats summarises one scan.
type ScanStats struct {
	Watches int
	Checks  int
	Failed  int
	Alerts  int
}

// Monitor periodically checks every watched pair and alerts the watchers
// when the profit margin reaches the configured threshold.
type Monitor struct {
	arb      *ArbService
	watches  domain.WatchlistStore
	locks    domain.LockManager
	limiter  domain.RateLimiter
	chat     ChatSender
	notifier Notifier
	cfg      MonitorConfig
	logger   *slog.Logger
}

// NewMonitor creates a Monitor. notifier may be nil.
func NewMonitor(
	arb *ArbService,
	watches domain.WatchlistStore,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	chat ChatSender,
	notifier Notifier,
	cfg MonitorConfig,
	logger *slog.Logger,
) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if !cfg.Capital.IsPositive() {
		cfg.Capital = decimal.NewFromInt(10000)
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = 30 * time.Minute
	}
	return &Monitor{
		arb:      arb,
		watches:  watches,
		locks:    locks,
		limiter:  limiter,
		chat:     chat,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// Run scans immediately and then once per interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.String("min_profit_pct", m.cfg.MinProfitPct.String()),
	)
	m.scanAndLog(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.scanAndLog(ctx)
		}
	}
}

func (m *Monitor) scanAndLog(ctx context.Context) {
	start := time.Now()
	stats, err := m.ScanOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.ErrorContext(ctx, "scan failed", slog.String("error", err.Error()))
			m.notify(ctx, notify.EventError, "Monitor scan failed", err.Error())
		}
		return
	}
	m.logger.InfoContext(ctx, "scan finished",
		slog.Int("watches", stats.Watches),
		slog.Int("checks", stats.Checks),
		slog.Int("failed", stats.Failed),
		slog.Int("alerts", stats.Alerts),
		slog.Duration("took", time.Since(start)),
	)
}

type watchGroup struct {
	key       string
	pair      string
	exchanges []domain.ExchangeID
	watchers  []domain.WatchDetail
}

// ScanOnce runs one scan. When another instance holds the scan lock it
// returns zero stats and no error.
func (m *Monitor) ScanOnce(ctx context.Context) (ScanStats, error) {
	unlock, err := m.locks.Acquire(ctx, scanLockKey, m.cfg.Interval)
	if errors.Is(err, domain.ErrLockHeld) {
		m.logger.DebugContext(ctx, "scan skipped, lock held elsewhere")
		return ScanStats{}, nil
	}
	if err != nil {
		return ScanStats{}, fmt.Errorf("monitor: acquire scan lock: %w", err)
	}
	defer unlock()

	details, err := m.watches.ListAllDetails(ctx)
	if err != nil {
		return ScanStats{}, fmt.Errorf("monitor: list watches: %w", err)
	}
	groups := groupWatches(details)

	var checks, failed, alerts atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for _, grp := range groups {
		g.Go(func() error {
			checks.Add(1)
			check, err := m.arb.Check(gctx, CheckRequest{
				Symbol:    grp.pair,
				Capital:   m.cfg.Capital,
				Exchanges: grp.exchanges,
				Source:    domain.SourceMonitor,
			})
			if err != nil {
				failed.Add(1)
				return nil
			}
			alerts.Add(int64(m.alert(gctx, grp, check)))
			return nil
		})
	}
	_ = g.Wait()

	return ScanStats{
		Watches: len(details),
		Checks:  int(checks.Load()),
		Failed:  int(failed.Load()),
		Alerts:  int(alerts.Load()),
	}, ctx.Err()
}

// alert messages every watcher of grp whose cooldown has passed and returns
// how many were messaged.
func (m *Monitor) alert(ctx context.Context, grp watchGroup, check domain.ArbitrageCheck) int {
	res := check.Report.Result
	if res == nil || res.NoTrade() || res.ProfitPct.LessThan(m.cfg.MinProfitPct) {
		return 0
	}

	text := arbitrage.FormatReport(check.Report)
	sent := 0
	for _, w := range grp.watchers {
		if !m.cooldownPassed(ctx, fmt.Sprintf("alert:%d:%s", w.UserID, w.Pair)) {
			continue
		}
		if err := m.chat.SendMessage(ctx, w.TelegramID, text); err != nil {
			m.logger.WarnContext(ctx, "send alert failed",
				slog.Int64("user_id", w.UserID),
				slog.String("pair", w.Pair),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}

	// Operators get one notice per pair and exchange set per cooldown window.
	if m.notifier != nil && m.cooldownPassed(ctx, "alert:operator:"+grp.key) {
		title := fmt.Sprintf("Arbitrage %s: %s%%", res.Symbol, res.ProfitPct.StringFixed(2))
		m.notify(ctx, notify.EventArbDetected, title, text)
	}
	return sent
}

// cooldownPassed reports whether key may alert again. Limiter errors fail open.
func (m *Monitor) cooldownPassed(ctx context.Context, key string) bool {
	allowed, err := m.limiter.Allow(ctx, key, 1, m.cfg.AlertCooldown)
	if err != nil {
		m.logger.WarnContext(ctx, "alert cooldown check failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return allowed
}

func (m *Monitor) notify(ctx context.Context, event, title, text string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, event, title, text); err != nil {
		m.logger.WarnContext(ctx, "operator notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// groupWatches collapses watches on the same pair and exchange set so each
// combination is checked once per scan. Groups come back in a stable order.
func groupWatches(details []domain.WatchDetail) []watchGroup {
	byKey := make(map[string]*watchGroup)
	var keys []string
	for _, d := range details {
		ex := append([]domain.ExchangeID(nil), d.Exchanges...)
		sort.Slice(ex, func(i, j int) bool { return ex[i] < ex[j] })
		parts := make([]string, len(ex))
		for i, id := range ex {
			parts[i] = string(id)
		}
		key := d.Pair + "|" + strings.Join(parts, ",")

		grp, ok := byKey[key]
		if !ok {
			grp = &watchGroup{key: key, pair: d.Pair, exchanges: ex}
			byKey[key] = grp
			keys = append(keys, key)
		}
		grp.watchers = append(grp.watchers, d)
	}
	sort.Strings(keys)

	out := make([]watchGroup, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out
}
