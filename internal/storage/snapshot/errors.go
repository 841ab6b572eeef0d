package snapshot

import "errors"

var (
	// ErrConfigureAfterLoad is returned by Configure once values have been
	// loaded or saved.
	ErrConfigureAfterLoad = errors.New("snapshot: cannot configure after load")

	// ErrNotConfigured is returned when an operation needs a key and none
	// has been set.
	ErrNotConfigured = errors.New("snapshot: key not configured")

	// ErrValueNotFound is returned by Get for unknown names.
	ErrValueNotFound = errors.New("snapshot: value not found")
)
