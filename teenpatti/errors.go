package teenpatti

import "errors"

var (
	ErrInvalidMove        = errors.New("invalid move")
	ErrInsufficientChips  = errors.New("insufficient chips")
	ErrMinRaiseViolation  = errors.New("raise below minimum")
	ErrSideShowIneligible = errors.New("side show not available")
	ErrShowNotAllowed     = errors.New("show not allowed")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrGameFull           = errors.New("game is full")
	ErrGameNotFound       = errors.New("game not found")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
