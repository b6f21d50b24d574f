// Package symbol converts canonical pair symbols such as "BTCUSDT" into the
// formats individual exchanges expect, and back.
package symbol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Format describes how an exchange writes a base/quote pair.
type Format string

const (
	// Concat is the canonical form: "BTCUSDT".
	Concat Format = "concat"
	// QuoteDashBase puts the quote asset first: "USDT-BTC".
	QuoteDashBase Format = "quote-dash-base"
	// BaseDashQuote: "BTC-USDT".
	BaseDashQuote Format = "base-dash-quote"
	// BaseUnderscoreQuote: "BTC_USDT".
	BaseUnderscoreQuote Format = "base-underscore-quote"
)

// ParseFormat validates a format name read from configuration.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Concat, QuoteDashBase, BaseDashQuote, BaseUnderscoreQuote:
		return f, nil
	case "":
		return Concat, nil
	default:
		return "", fmt.Errorf("symbol: unknown format %q", s)
	}
}

// DefaultQuoteSuffixes are the quote assets recognised when none are configured.
var DefaultQuoteSuffixes = []string{"USDT"}

// DefaultFormats is the per-exchange table. Exchanges not listed use Concat.
var DefaultFormats = map[domain.ExchangeID]Format{
	domain.ExchangeUpbit: QuoteDashBase,
}

// Normalizer maps canonical symbols to exchange symbols using a per-exchange
// Format table.
type Normalizer struct {
	suffixes []string // longest first
	formats  map[domain.ExchangeID]Format
}

// NewNormalizer builds a Normalizer. Nil or empty arguments fall back to the
// package defaults. The formats map is copied.
func NewNormalizer(suffixes []string, formats map[domain.ExchangeID]Format) *Normalizer {
	if len(suffixes) == 0 {
		suffixes = DefaultQuoteSuffixes
	}
	sfx := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			sfx = append(sfx, s)
		}
	}
	sort.SliceStable(sfx, func(i, j int) bool { return len(sfx[i]) > len(sfx[j]) })

	if formats == nil {
		formats = DefaultFormats
	}
	table := make(map[domain.ExchangeID]Format, len(formats))
	for ex, f := range formats {
		table[ex] = f
	}
	return &Normalizer{suffixes: sfx, formats: table}
}

// Format returns the format used for ex.
func (n *Normalizer) Format(ex domain.ExchangeID) Format {
	if f, ok := n.formats[ex]; ok {
		return f
	}
	return Concat
}

// Split validates a canonical symbol and returns its base and quote assets.
// Lower-case input is accepted and upper-cased.
func (n *Normalizer) Split(canonical string) (base, quote string, err error) {
	s := strings.ToUpper(strings.TrimSpace(canonical))
	if s == "" {
		return "", "", fmt.Errorf("%w: empty symbol", domain.ErrInvalidSymbol)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", "", fmt.Errorf("%w: %q contains %q", domain.ErrInvalidSymbol, canonical, r)
		}
	}
	for _, q := range n.suffixes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q does not end in a known quote asset (%s)",
		domain.ErrInvalidSymbol, canonical, strings.Join(n.suffixes, ", "))
}

// Validate returns the upper-cased canonical symbol or ErrInvalidSymbol.
func (n *Normalizer) Validate(canonical string) (string, error) {
	base, quote, err := n.Split(canonical)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}

// Normalize converts a canonical symbol into the representation ex expects.
func (n *Normalizer) Normalize(canonical string, ex domain.ExchangeID) (string, error) {
	base, quote, err := n.Split(canonical)
	if err != nil {
		return "", err
	}
	switch n.Format(ex) {
	case QuoteDashBase:
		return quote + "-" + base, nil
	case BaseDashQuote:
		return base + "-" + quote, nil
	case BaseUnderscoreQuote:
		return base + "_" + quote, nil
	default:
		return base + quote, nil
	}
}

// Denormalize converts an exchange symbol back to canonical form.
func (n *Normalizer) Denormalize(exchangeSymbol string, ex domain.ExchangeID) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(exchangeSymbol))
	var base, quote string
	switch n.Format(ex) {
	case QuoteDashBase:
		quote, base, _ = strings.Cut(s, "-")
	case BaseDashQuote:
		base, quote, _ = strings.Cut(s, "-")
	case BaseUnderscoreQuote:
		base, quote, _ = strings.Cut(s, "_")
	default:
		return n.Validate(s)
	}
	if base == "" || quote == "" {
		return "", fmt.Errorf("%w: %q is not a %s symbol for %s", domain.ErrInvalidSymbol, exchangeSymbol, n.Format(ex), ex)
	}
	return n.Validate(base + quote)
}
