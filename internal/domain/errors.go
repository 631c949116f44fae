package domain

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a channel message was already recorded.
	ErrDuplicate = errors.New("duplicate message")
)
