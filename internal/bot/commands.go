package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/service"
)

const (
	msgRateLimited   = "Too many requests, please slow down and try again shortly"
	msgServerError   = "Server error, please try later"
	msgNoAccount     = "Please create account with /start first"
	msgUnknown       = "Unrecognized command, use /help to see available commands"
	msgWelcomeBack   = "Welcome back! Use /help to see available commands"
	msgAccountGone   = "Account not found"
	msgAccountDelete = "Your account has been permanently deleted"
)

const commandList = "/add_pair - Add a currency pair to monitor\n" +
	"/list_pairs - View your watchlist\n" +
	"/remove_pair - Remove a currency pair from your watchlist\n" +
	"/add_exchange - Add an exchange to monitor\n" +
	"/remove_exchange - Remove an exchange from monitoring\n" +
	"/list_available_pairs - View all available currency pairs\n" +
	"/list_on_time - List real-time arbitrage opportunities\n" +
	"/delete_me - Delete your account and stop monitoring\n" +
	"/help - Show all commands"

const msgCreated = "Account created successfully!\n\n" +
	"This bot monitors price differences for the same cryptocurrency across " +
	"exchanges and alerts you to arbitrage opportunities.\n\n" +
	"Use these commands to start monitoring:\n" + commandList

const msgHelp = "Available commands:\n\n/start - Create new account\n" + commandList

// Incoming is one command message with the sender's identity.
type Incoming struct {
	ChatID     string
	TelegramID string
	Username   string
	Text       string
}

// Commands implements the bot's slash commands on top of the services.
type Commands struct {
	watch   *service.WatchlistService
	arb     *service.ArbService
	capital decimal.Decimal
	logger  *slog.Logger
}

// NewCommands creates the command set. defaultCapital is used by
// /list_on_time when no capital is given.
func NewCommands(watch *service.WatchlistService, arb *service.ArbService, defaultCapital decimal.Decimal, logger *slog.Logger) *Commands {
	if !defaultCapital.IsPositive() {
		defaultCapital = decimal.NewFromInt(10000)
	}
	return &Commands{
		watch:   watch,
		arb:     arb,
		capital: defaultCapital,
		logger:  logger.With(slog.String("component", "bot_commands")),
	}
}

// commandName returns the lower-cased command without the slash or a
// trailing @botname.
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Dispatch runs the command in in.Text and returns the reply. Plain text that
// is not a command gets no reply.
func (c *Commands) Dispatch(ctx context.Context, in Incoming) string {
	if !strings.HasPrefix(strings.TrimSpace(in.Text), "/") {
		return ""
	}
	args := strings.Fields(in.Text)[1:]

	switch commandName(in.Text) {
	case "start":
		return c.start(ctx, in)
	case "help":
		return msgHelp
	case "add_pair":
		return c.addPair(ctx, in, args)
	case "list_pairs":
		return c.listPairs(ctx, in)
	case "remove_pair":
		return c.removePair(ctx, in, args)
	case "add_exchange":
		return c.updateExchange(ctx, in, args, true)
	case "remove_exchange":
		return c.updateExchange(ctx, in, args, false)
	case "list_available_pairs":
		return c.listAvailablePairs(ctx)
	case "list_on_time":
		return c.listOnTime(ctx, in, args)
	case "delete_me":
		return c.deleteMe(ctx, in)
	default:
		return msgUnknown
	}
}

func (c *Commands) fail(ctx context.Context, op string, err error) string {
	c.logger.ErrorContext(ctx, "command failed", slog.String("command", op), slog.String("error", err.Error()))
	return msgServerError
}

func (c *Commands) start(ctx context.Context, in Incoming) string {
	_, created, err := c.watch.EnsureUser(ctx, in.TelegramID, in.Username)
	if err != nil {
		return c.fail(ctx, "start", err)
	}
	if !created {
		return msgWelcomeBack
	}
	return msgCreated
}

// user resolves the sender's account. The string is a ready reply when the
// account cannot be used.
func (c *Commands) user(ctx context.Context, in Incoming, op string) (domain.User, string) {
	u, err := c.watch.GetUserByTelegramID(ctx, in.TelegramID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, msgNoAccount
	}
	if err != nil {
		return domain.User{}, c.fail(ctx, op, err)
	}
	return u, ""
}

func (c *Commands) pair(ctx context.Context, name, op string) (domain.CurrencyPair, string) {
	p, err := c.watch.GetPair(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CurrencyPair{}, fmt.Sprintf("Currency pair %s does not exist\nUse /list_available_pairs to see available pairs", name)
	}
	if err != nil {
		return domain.CurrencyPair{}, c.fail(ctx, op, err)
	}
	return p, ""
}

func (c *Commands) supported() string {
	ids := c.watch.AvailableExchanges()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func formatExchanges(ids []domain.ExchangeID) string {
	if len(ids) == 0 {
		return "all"
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func (c *Commands) addPair(ctx context.Context, in Incoming, args []string) string {
	if len(args) < 2 {
		return "Invalid format! Please use:\n/add_pair [PAIR] [EXCHANGES]\nExample: /add_pair BTCUSDT BinanceUS,MEXC"
	}
	name := strings.ToUpper(args[0])

	u, reply := c.user(ctx, in, "add_pair")
	if reply != "" {
		return reply
	}
	p, reply := c.pair(ctx, name, "add_pair")
	if reply != "" {
		return reply
	}

	exchanges := strings.Split(strings.Join(args[1:], ","), ",")
	w, err := c.watch.AddWatch(ctx, u.ID, p.ID, exchanges)
	switch {
	case errors.Is(err, domain.ErrUnknownExchange):
		return fmt.Sprintf("Unknown exchange in %q\nSupported exchanges: %s", strings.Join(args[1:], " "), c.supported())
	case errors.Is(err, domain.ErrAlreadyExists):
		return fmt.Sprintf("%s is already on your watchlist, use /add_exchange or /remove_exchange to change exchanges", name)
	case err != nil:
		return c.fail(ctx, "add_pair", err)
	}
	return fmt.Sprintf("Monitoring added:\nPair: %s\nExchanges: %s", name, formatExchanges(w.SelectedExchanges))
}

func (c *Commands) listPairs(ctx context.Context, in Incoming) string {
	u, reply := c.user(ctx, in, "list_pairs")
	if reply != "" {
		return reply
	}
	details, err := c.watch.ListWatchDetails(ctx, u.ID)
	if err != nil {
		return c.fail(ctx, "list_pairs", err)
	}
	if len(details) == 0 {
		return "You are not monitoring any pairs yet"
	}

	var b strings.Builder
	b.WriteString("Your watchlist:\n")
	for _, d := range details {
		fmt.Fprintf(&b, "\n- %s\nExchanges: %s\nRemove with: /remove_pair %s\n", d.Pair, formatExchanges(d.Exchanges), d.Pair)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) removePair(ctx context.Context, in Incoming, args []string) string {
	if len(args) == 0 {
		return "Please specify pair to remove, example: /remove_pair BTCUSDT"
	}
	name := strings.ToUpper(args[0])

	u, reply := c.user(ctx, in, "remove_pair")
	if reply != "" {
		return reply
	}
	p, reply := c.pair(ctx, name, "remove_pair")
	if reply != "" {
		return reply
	}
	if _, err := c.watch.RemoveWatch(ctx, u.ID, p.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Removal failed, confirm pair is in your watchlist"
		}
		return c.fail(ctx, "remove_pair", err)
	}
	return fmt.Sprintf("Removed monitoring for %s", name)
}

func (c *Commands) updateExchange(ctx context.Context, in Incoming, args []string, add bool) string {
	cmd := "/remove_exchange"
	if add {
		cmd = "/add_exchange"
	}
	if len(args) < 2 {
		return fmt.Sprintf("Invalid format! Please use:\n%s [PAIR] [EXCHANGE]\nExample: %s BTCUSDT BinanceUS", cmd, cmd)
	}
	name := strings.ToUpper(args[0])
	ex := args[1]

	u, reply := c.user(ctx, in, cmd)
	if reply != "" {
		return reply
	}
	p, reply := c.pair(ctx, name, cmd)
	if reply != "" {
		return reply
	}

	upd := domain.WatchUpdate{Remove: &ex}
	if add {
		upd = domain.WatchUpdate{Add: &ex}
	}
	w, err := c.watch.UpdateWatch(ctx, u.ID, p.ID, upd)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("%s is not on your watchlist, add it with /add_pair first", name)
	case errors.Is(err, domain.ErrUnknownExchange):
		return fmt.Sprintf("Unknown exchange %s\nSupported exchanges: %s", ex, c.supported())
	case err != nil:
		return c.fail(ctx, cmd, err)
	}

	verb := "removed"
	if add {
		verb = "added"
	}
	return fmt.Sprintf("Successfully %s exchange %s\nExchanges for %s: %s", verb, ex, name, formatExchanges(w.SelectedExchanges))
}

func (c *Commands) listAvailablePairs(ctx context.Context) string {
	pairs, err := c.watch.ListPairs(ctx, domain.ListOpts{Limit: 1000})
	if err != nil {
		return c.fail(ctx, "list_available_pairs", err)
	}
	if len(pairs) == 0 {
		return "No currency pairs are available yet"
	}

	var b strings.Builder
	b.WriteString("Available currency pairs:\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "- %s\n", p.Pair)
	}
	fmt.Fprintf(&b, "\nHow to add monitoring:\n"+
		"1. Use /add_pair [PAIR] [EXCHANGES]\n"+
		"2. Separate exchanges with commas\n"+
		"3. Supported exchanges: %s\n"+
		"Example: /add_pair BTCUSDT BinanceUS,MEXC", c.supported())
	return b.String()
}

func (c *Commands) listOnTime(ctx context.Context, in Incoming, args []string) string {
	if len(args) == 0 {
		return "Please specify pair, example: /list_on_time BTCUSDT [CAPITAL]"
	}
	name := strings.ToUpper(args[0])

	capital := c.capital
	if len(args) > 1 {
		v, err := decimal.NewFromString(args[1])
		if err != nil || !v.IsPositive() {
			return arbitrage.FailureReason(name, domain.ErrInvalidCapital)
		}
		capital = v
	}

	// A watched pair is checked on the user's exchanges only.
	var exchanges []domain.ExchangeID
	if u, err := c.watch.GetUserByTelegramID(ctx, in.TelegramID); err == nil {
		if d, err := c.watch.FindWatch(ctx, u.ID, name); err == nil {
			exchanges = d.Exchanges
		}
	}

	check, err := c.arb.Check(ctx, service.CheckRequest{
		Symbol:    name,
		Capital:   capital,
		Exchanges: exchanges,
		Source:    domain.SourceBot,
	})
	if err != nil {
		return arbitrage.FormatFailure(name, check.Report.Snapshot, err)
	}
	return arbitrage.FormatReport(check.Report)
}

func (c *Commands) deleteMe(ctx context.Context, in Incoming) string {
	u, err := c.watch.GetUserByTelegramID(ctx, in.TelegramID)
	if errors.Is(err, domain.ErrNotFound) {
		return msgAccountGone
	}
	if err != nil {
		return c.fail(ctx, "delete_me", err)
	}
	if _, err := c.watch.DeleteUser(ctx, u.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return msgAccountGone
		}
		return c.fail(ctx, "delete_me", err)
	}
	return msgAccountDelete
}
