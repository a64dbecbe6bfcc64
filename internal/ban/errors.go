package ban

import "errors"

var (
	// ErrInvalidAddress is returned for a zero or unparsable address.
	ErrInvalidAddress = errors.New("ban: invalid address")

	// ErrStore wraps failures of the persistence layer.
	ErrStore = errors.New("ban: store failure")
)
