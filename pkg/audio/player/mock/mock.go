// Package mock provides test doubles for the player package interfaces.
//
// Player hands out scripted Playback handles; Playback completes when the
// test calls Finish, so tests control playback timing deterministically.
package mock

import (
	"context"
	"sync"

	"github.com/vesta-home/vesta/pkg/audio/player"
)

// Player is a mock implementation of [player.Player].
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// AutoFinish makes every returned Playback complete immediately.
	AutoFinish bool

	// Playbacks records every handle returned by Play, in order.
	Playbacks []*Playback

	// PlayedWAVs records a copy of each clip passed to Play.
	PlayedWAVs [][]byte
}

var _ player.Player = (*Player)(nil)

// Play records the clip and returns a fresh Playback handle.
func (p *Player) Play(_ context.Context, wav []byte) (player.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PlayErr != nil {
		return nil, p.PlayErr
	}
	pb := &Playback{done: make(chan struct{})}
	if p.AutoFinish {
		pb.Finish()
	}
	p.Playbacks = append(p.Playbacks, pb)
	p.PlayedWAVs = append(p.PlayedWAVs, append([]byte(nil), wav...))
	return pb, nil
}

// Last returns the most recently created Playback, or nil.
func (p *Player) Last() *Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Playbacks) == 0 {
		return nil
	}
	return p.Playbacks[len(p.Playbacks)-1]
}

// Playback is a mock implementation of [player.Playback].
type Playback struct {
	mu     sync.Mutex
	done   chan struct{}
	closed bool

	// KillErr is returned by Kill.
	KillErr error

	// CallCountKill records how many times Kill was called.
	CallCountKill int
}

var _ player.Playback = (*Playback)(nil)

// Finish marks the playback as naturally completed. Idempotent.
func (pb *Playback) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if !pb.closed {
		pb.closed = true
		close(pb.done)
	}
}

// Wait blocks until Finish or Kill is called, or ctx is cancelled.
func (pb *Playback) Wait(ctx context.Context) error {
	select {
	case <-pb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill records the call and completes the playback.
func (pb *Playback) Kill() error {
	pb.mu.Lock()
	pb.CallCountKill++
	err := pb.KillErr
	pb.mu.Unlock()
	pb.Finish()
	return err
}

// Killed reports whether Kill was called at least once.
func (pb *Playback) Killed() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.CallCountKill > 0
}
