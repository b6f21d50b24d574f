package domain

import "time"

// DefaultUsername is assigned when a user is created without a name.
const DefaultUsername = "default_user"

// User is a bot user identified by their Telegram account.
type User struct {
	ID         int64     `json:"id"`
	TelegramID string    `json:"telegram_id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
}

// CurrencyPair is a canonical symbol users can watch, e.g. "BTCUSDT".
type CurrencyPair struct {
	ID   int64  `json:"id"`
	Pair string `json:"pair"`
}

// Watch links a user to a currency pair and the exchanges they monitor it on.
type Watch struct {
	UserID            int64        `json:"user_id"`
	CurrencyPairID    int64        `json:"currency_pair_id"`
	SelectedExchanges []ExchangeID `json:"selected_exchanges"`
}

// WatchDetail is a Watch joined with the pair name and the owner's Telegram ID.
type WatchDetail struct {
	UserID         int64        `json:"user_id"`
	TelegramID     string       `json:"telegram_id"`
	CurrencyPairID int64        `json:"currency_pair_id"`
	Pair           string       `json:"pair"`
	Exchanges      []ExchangeID `json:"exchanges"`
}

// WatchUpdate changes the exchange selection of a watch. NewExchanges, when
// set, replaces the whole list; otherwise Remove is applied before Add.
type WatchUpdate struct {
	NewExchanges *string `json:"new_exchanges"`
	Add          *string `json:"exchange_to_add"`
	Remove       *string `json:"exchange_to_remove"`
}
