package domain

import "errors"

var (
	// ErrPositionNotFound is returned by lookups for an unknown position id.
	ErrPositionNotFound = errors.New("position not found")

	// ErrInvalidParams is returned when position creation parameters fail
	// validation (non-positive entry price, margin or size, leverage < 1).
	ErrInvalidParams = errors.New("invalid position parameters")
)
