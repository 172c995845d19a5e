package state

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrModelNotFound   = errors.New("model not found")
)
