package domain

import "errors"

var (
	// ErrNotFound is returned by the store when a playlist or binding does not exist
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks a playlist that cannot run as defined
	ErrConfiguration = errors.New("configuration error")

	// ErrApply marks an image that could not be applied after every retry
	ErrApply = errors.New("could not set image")

	// ErrPersistence marks a failed write to the store
	ErrPersistence = errors.New("persistence error")

	// ErrRouting marks a control command aimed at a monitor with no running playlist
	ErrRouting = errors.New("no playlist running on monitor")

	// ErrEngineStopped is returned by operations on a stopped engine
	ErrEngineStopped = errors.New("playlist engine is stopped")
)
