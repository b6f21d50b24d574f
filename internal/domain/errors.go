package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrLockHeld      = errors.New("lock already held")

	// Arbitrage engine.
	ErrInvalidCapital     = errors.New("capital must be positive")
	ErrInsufficientQuotes = errors.New("fewer than 2 exchanges returned a usable price")
	ErrInvalidSymbol      = errors.New("invalid canonical symbol")
	ErrUnknownExchange    = errors.New("unknown exchange")
	ErrMissingFees        = errors.New("no fee schedule for exchange")
)
