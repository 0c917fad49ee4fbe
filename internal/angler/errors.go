package angler

import (
	"errors"

	"github.com/sk3pz/anglerbot/internal/shop"
	"github.com/sk3pz/anglerbot/internal/tuning"
)

var (
	ErrAlreadyCasting    = errors.New("already casting")
	ErrCastInProgress    = errors.New("cast in progress")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrClosed            = errors.New("engine closed")

	// errStale marks a resolution whose pending cast is gone or was replaced.
	errStale = errors.New("stale cast")
)

// UserMessage turns an error from the engine into something to show the
// player. Internal errors get a generic line; callers should log them.
func UserMessage(err error) string {
	var cfgErr *tuning.ConfigError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyCasting):
		return "You have already cast your line!"
	case errors.Is(err, ErrCastInProgress):
		return "Please wait until your cast is finished to buy a new rod!"
	case errors.Is(err, shop.ErrInvalidSelection):
		return "Invalid item!"
	case errors.Is(err, ErrInsufficientFunds):
		return "You don't have enough money!"
	case errors.Is(err, ErrClosed):
		return "The pond is closing up, try again in a moment."
	case errors.As(err, &cfgErr):
		return "The pond is being restocked, please try again later!"
	default:
		return "Something went wrong, please try again later."
	}
}

// IsUserError reports whether err is the player's doing rather than ours.
func IsUserError(err error) bool {
	return errors.Is(err, ErrAlreadyCasting) ||
		errors.Is(err, ErrCastInProgress) ||
		errors.Is(err, shop.ErrInvalidSelection) ||
		errors.Is(err, ErrInsufficientFunds)
}
