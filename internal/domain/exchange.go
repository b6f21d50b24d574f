package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExchangeID identifies a supported exchange, e.g. "MEXC" or "BinanceUS".
type ExchangeID string

const (
	ExchangeMEXC      ExchangeID = "MEXC"
	ExchangeBitget    ExchangeID = "Bitget"
	ExchangeUpbit     ExchangeID = "Upbit"
	ExchangeBinanceUS ExchangeID = "BinanceUS"
)

// SupportedExchanges lists every exchange an adapter exists for, sorted.
var SupportedExchanges = []ExchangeID{ExchangeBinanceUS, ExchangeBitget, ExchangeMEXC, ExchangeUpbit}

// LookupExchange matches name against SupportedExchanges ignoring case.
func LookupExchange(name string) (ExchangeID, bool) {
	name = strings.TrimSpace(name)
	for _, id := range SupportedExchanges {
		if strings.EqualFold(string(id), name) {
			return id, true
		}
	}
	return "", false
}

// FeeSchedule holds the static maker/taker fee rates of one exchange. Rates
// are fractions, so 0.001 means 0.1%.
type FeeSchedule struct {
	Exchange ExchangeID      `json:"exchange"`
	Maker    decimal.Decimal `json:"maker_fee"`
	Taker    decimal.Decimal `json:"taker_fee"`
}

// Validate reports whether both rates lie in [0, 1).
func (f FeeSchedule) Validate() error {
	one := decimal.NewFromInt(1)
	if f.Maker.IsNegative() || f.Maker.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: %s maker fee %s outside [0,1)", ErrInvalidInput, f.Exchange, f.Maker)
	}
	if f.Taker.IsNegative() || f.Taker.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: %s taker fee %s outside [0,1)", ErrInvalidInput, f.Exchange, f.Taker)
	}
	return nil
}

// FeeTable maps exchanges to their fee schedules.
type FeeTable map[ExchangeID]FeeSchedule

// ExchangeAdapter is the capability every exchange integration provides.
// Quote receives the symbol already formatted for the exchange.
type ExchangeAdapter interface {
	ID() ExchangeID
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
	Fees() FeeSchedule
}

// UnavailableReason explains why an exchange contributed no price.
type UnavailableReason string

const (
	ReasonTimeout      UnavailableReason = "timeout"
	ReasonNetwork      UnavailableReason = "network"
	ReasonBadStatus    UnavailableReason = "bad_status"
	ReasonMalformed    UnavailableReason = "malformed"
	ReasonInvalidQuote UnavailableReason = "invalid_quote"
	// ReasonDisabled marks an exchange that was requested but is not enabled.
	ReasonDisabled UnavailableReason = "disabled"
)

// UnavailableError is returned by adapters to classify a failed quote.
type UnavailableError struct {
	Reason UnavailableReason
	Err    error
}

// Unavailable wraps err with the given reason.
func Unavailable(reason UnavailableReason, err error) *UnavailableError {
	return &UnavailableError{Reason: reason, Err: err}
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ReasonOf extracts the UnavailableReason carried by err. Errors that carry
// no reason are reported as network failures.
func ReasonOf(err error) UnavailableReason {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonNetwork
}
