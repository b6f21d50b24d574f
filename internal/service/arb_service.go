package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// ChannelArb is the signal bus channel carrying check events.
const ChannelArb = "arb"

// EventArbCheck is the type tag of events published on ChannelArb.
const EventArbCheck = "arb_check"

// Checker runs one arbitrage check. *arbitrage.Engine satisfies it.
type Checker interface {
	Check(ctx context.Context, symbol string, capital decimal.Decimal, exchanges ...domain.ExchangeID) (domain.ArbitrageReport, error)
}

// CheckRequest describes one check.
type CheckRequest struct {
	Symbol    string
	Capital   decimal.Decimal
	Exchanges []domain.ExchangeID
	Source    domain.CheckSource
}

// CheckEvent is the JSON payload published for every recorded check.
type CheckEvent struct {
	Type  string                `json:"type"`
	Check domain.ArbitrageCheck `json:"check"`
}

// ArbService runs arbitrage checks and records them: the check log in
// Postgres, the latest quotes in Redis and an event on the signal bus. The
// side effects are best effort; only the engine's outcome is returned.
// Any of checks, quotes and bus may be nil.
type ArbService struct {
	engine  Checker
	symbols SymbolValidator
	checks  domain.CheckStore
	quotes  domain.QuoteCache
	bus     domain.SignalBus
	logger  *slog.Logger
	now     func() time.Time
}

// NewArbService creates an ArbService with all required dependencies.
func NewArbService(
	engine Checker,
	symbols SymbolValidator,
	checks domain.CheckStore,
	quotes domain.QuoteCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ArbService {
	return &ArbService{
		engine:  engine,
		symbols: symbols,
		checks:  checks,
		quotes:  quotes,
		bus:     bus,
		logger:  logger.With(slog.String("component", "arb_service")),
		now:     time.Now,
	}
}

// Check runs the engine and records the outcome. The returned check carries
// the snapshot even when err is non-nil so callers can show the prices that
// were collected. Requests rejected before quoting are not recorded.
func (s *ArbService) Check(ctx context.Context, req CheckRequest) (domain.ArbitrageCheck, error) {
	if req.Source == "" {
		req.Source = domain.SourceAPI
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	report, err := s.engine.Check(ctx, symbol, req.Capital, req.Exchanges...)
	check := domain.ArbitrageCheck{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Source:    req.Source,
		Capital:   req.Capital,
		Report:    report,
		CheckedAt: s.now().UTC(),
	}
	if report.Snapshot.Len() > 0 {
		check.Symbol = report.Snapshot.Symbol()
	}
	if err != nil {
		check.Error = err.Error()
	}

	if report.Snapshot.Len() == 0 {
		return check, err
	}

	s.record(ctx, check)

	if err != nil {
		s.logger.WarnContext(ctx, "check failed",
			slog.String("symbol", check.Symbol),
			slog.String("source", string(check.Source)),
			slog.String("error", err.Error()),
		)
		return check, err
	}

	res := report.Result
	s.logger.InfoContext(ctx, "check completed",
		slog.String("symbol", check.Symbol),
		slog.String("source", string(check.Source)),
		slog.String("buy", string(res.BuyExchange)),
		slog.String("sell", string(res.SellExchange)),
		slog.String("profit_pct", res.ProfitPct.StringFixed(4)),
	)
	return check, nil
}

func (s *ArbService) record(ctx context.Context, check domain.ArbitrageCheck) {
	if s.checks != nil {
		if err := s.checks.Insert(ctx, check); err != nil {
			s.logger.WarnContext(ctx, "store check failed",
				slog.String("check_id", check.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.quotes != nil {
		snap := check.Report.Snapshot
		if err := s.quotes.SetQuotes(ctx, snap.Symbol(), snap.Quotes(), snap.At()); err != nil {
			s.logger.WarnContext(ctx, "cache quotes failed",
				slog.String("symbol", snap.Symbol()),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(CheckEvent{Type: EventArbCheck, Check: check})
		if err != nil {
			s.logger.WarnContext(ctx, "encode check event failed", slog.String("error", err.Error()))
			return
		}
		if err := s.bus.Publish(ctx, ChannelArb, payload); err != nil {
			s.logger.WarnContext(ctx, "publish check event failed",
				slog.String("check_id", check.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ListRecent returns the latest recorded checks, newest first.
func (s *ArbService) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageCheck, error) {
	if s.checks == nil {
		return nil, errors.New("arb_service: check log not configured")
	}
	checks, err := s.checks.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("arb_service: list recent: %w", err)
	}
	return checks, nil
}

// LatestQuotes returns the most recently cached quotes for symbol.
func (s *ArbService) LatestQuotes(ctx context.Context, symbol string) ([]domain.CachedQuote, error) {
	sym, err := s.symbols.Validate(symbol)
	if err != nil {
		return nil, err
	}
	if s.quotes == nil {
		return nil, domain.ErrNotFound
	}
	quotes, err := s.quotes.GetQuotes(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("arb_service: latest quotes %s: %w", sym, err)
	}
	return quotes, nil
}
