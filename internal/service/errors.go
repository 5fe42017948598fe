package service

import "errors"

var (
	ErrSessionNotFound           = errors.New("payment session not found")
	ErrInvalidTransition         = errors.New("invalid session status transition")
	ErrNoGiftCardAvailable       = errors.New("no gift card available")
	ErrConcurrentReservationLost = errors.New("lost gift card reservation race")
	ErrDegradedAllocation        = errors.New("only a lower-value gift card is available")
)
