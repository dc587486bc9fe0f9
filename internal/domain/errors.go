package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyCache   = errors.New("no cached value")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrFeedClosed   = errors.New("feed closed")
	ErrContextDone  = errors.New("context cancelled")
	ErrLockHeld     = errors.New("lock already held")
)
