// Package audio provides the playback handle the sequencer drives. At most
// one handle is meant to be alive at a time; callers stop then unload the
// outgoing handle before opening the next.
package audio

import (
	"context"
	"errors"
)

// ErrPlayback marks failures opening or controlling a handle.
var ErrPlayback = errors.New("playback failure")

// Status is reported once per handle when its stream ends.
type Status struct {
	HandleID string
	// Finished is true only when the stream played to its natural end,
	// not when it was stopped or failed.
	Finished bool
	Err      error
}

// Handle is one loaded, possibly playing, audio item.
type Handle interface {
	ID() string
	// Start begins playback. onDone is called exactly once, off the audio
	// goroutine.
	Start(onDone func(Status)) error
	Pause() error
	Resume() error
	Paused() bool
	Stop() error
	Unload() error
}

// Player opens handles for audio resources.
type Player interface {
	Open(ctx context.Context, url string) (Handle, error)
}
