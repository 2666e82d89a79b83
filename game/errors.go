package game

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package for a rejected
// operation wraps exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidArgument  = errors.New("invalid argument")
)

var (
	ErrRoomNotFound   = fmt.Errorf("room %w", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)

	ErrNotHost = fmt.Errorf("%w: only the host can do this", ErrPermissionDenied)

	ErrAlreadyStarted     = fmt.Errorf("%w: game already started", ErrInvalidState)
	ErrNotCountdown       = fmt.Errorf("%w: not in countdown", ErrInvalidState)
	ErrNotFinished        = fmt.Errorf("%w: game not finished", ErrInvalidState)
	ErrRaceNotRunning     = fmt.Errorf("%w: race is not in progress", ErrInvalidState)
	ErrProgressRegressed  = fmt.Errorf("%w: progress cannot move backwards", ErrInvalidState)
	ErrProgressOutOfRange = fmt.Errorf("%w: word index beyond end of text", ErrInvalidState)

	ErrUnknownTier = fmt.Errorf("%w: unknown duration", ErrInvalidArgument)
	ErrInvalidName = fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidArgument, MaxNameLength)
	ErrNoSession   = fmt.Errorf("%w: missing session identity", ErrInvalidArgument)
)
