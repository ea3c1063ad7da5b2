package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// killWait bounds how long Kill waits for the playback process to die after
// the signal is sent.
const killWait = 2 * time.Second

// ExecPlayer plays WAV clips through an external command (aplay, paplay,
// ffplay) that reads the clip from stdin. The subprocess model is what makes
// the interrupt protocol reliable: killing the process silences the speaker
// immediately, with no decoder state left behind.
type ExecPlayer struct {
	command string
	args    []string
}

var _ Player = (*ExecPlayer)(nil)

// NewExecPlayer returns a player that pipes WAV data to the given command.
// With no arguments the command defaults to "aplay" reading from stdin.
func NewExecPlayer(command string, args ...string) *ExecPlayer {
	if command == "" {
		command = "aplay"
		args = []string{"-q", "-"}
	}
	return &ExecPlayer{command: command, args: args}
}

// Play spawns the playback process and returns a handle to it.
func (p *ExecPlayer) Play(ctx context.Context, wav []byte) (Playback, error) {
	cmd := exec.Command(p.command, p.args...)
	cmd.Stdin = bytes.NewReader(wav)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("player: start %s: %w", p.command, err)
	}

	pb := &execPlayback{done: make(chan struct{})}
	go func() {
		pb.err = cmd.Wait()
		close(pb.done)
	}()
	pb.kill = func() error { return cmd.Process.Kill() }
	return pb, nil
}

type execPlayback struct {
	done chan struct{}
	err  error
	kill func() error

	mu     sync.Mutex
	killed bool
}

func (pb *execPlayback) Wait(ctx context.Context) error {
	select {
	case <-pb.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	pb.mu.Lock()
	killed := pb.killed
	pb.mu.Unlock()
	if killed {
		// A killed process exits non-zero; that is the expected outcome of
		// an interrupt, not a playback failure.
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(pb.err, &exitErr) {
		return fmt.Errorf("player: playback exited: %w", pb.err)
	}
	return pb.err
}

func (pb *execPlayback) Kill() error {
	pb.mu.Lock()
	if pb.killed {
		pb.mu.Unlock()
		return nil
	}
	pb.killed = true
	pb.mu.Unlock()

	select {
	case <-pb.done:
		return nil // already finished
	default:
	}
	if err := pb.kill(); err != nil {
		return fmt.Errorf("player: kill playback: %w", err)
	}
	select {
	case <-pb.done:
	case <-time.After(killWait):
		slog.Warn("playback process did not exit after kill", "wait", killWait)
	}
	return nil
}
