package engine

import "errors"

var (
	ErrAlreadyRunning = errors.New("engine: already running")
	ErrNotRunning     = errors.New("engine: not running")
	ErrStorageOff     = errors.New("engine: storage unavailable")
)
