package engine

import "errors"

var (
	// ErrMissingFiles reports that a start attempt was refused because one
	// or more required files were absent from the working directory.
	ErrMissingFiles = errors.New("required files missing")

	// ErrUnknownService reports a lookup for a name the group does not
	// supervise.
	ErrUnknownService = errors.New("unknown service")

	// ErrReloadBlocked reports that a reload was rejected because the group
	// still has live work in flight.
	ErrReloadBlocked = errors.New("reload blocked")
)
