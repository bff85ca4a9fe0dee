package storage

import "errors"

var (
	// ErrInvalidSetting is returned when a stored setting cannot be decoded.
	ErrInvalidSetting = errors.New("storage: invalid setting value")

	// ErrInvalidPhase is returned for a feed log entry with an unknown phase.
	ErrInvalidPhase = errors.New("storage: invalid feed log phase")
)
