package local

import (
	"errors"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist. It matches
	// domain.ErrNotFound.
	ErrNotFound = domain.ErrNotFound
	// ErrInvalidKey is returned for keys that would leave the collection.
	ErrInvalidKey = errors.New("invalid record key")
)
