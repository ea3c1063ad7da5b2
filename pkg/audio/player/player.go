// Package player abstracts WAV playback behind a handle that supports both
// waiting for natural completion and hard interruption mid-utterance.
package player

import "context"

// Playback is a handle to one in-flight playback.
type Playback interface {
	// Wait blocks until playback finishes naturally, is killed, or ctx is
	// cancelled. Returns nil on natural completion and after Kill.
	Wait(ctx context.Context) error

	// Kill stops playback immediately and waits (bounded) for the underlying
	// output to go quiet. Idempotent.
	Kill() error
}

// Player starts playback of complete WAV clips.
type Player interface {
	// Play starts playing the WAV clip and returns immediately with a
	// handle. Clips are not queued here; callers serialize playback.
	Play(ctx context.Context, wav []byte) (Playback, error)
}
