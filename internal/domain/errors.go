package domain

import "errors"

var (
	ErrClosed      = errors.New("client closed")
	ErrStaleResult = errors.New("stale result discarded")
	ErrNoView      = errors.New("no view for bot")
)
