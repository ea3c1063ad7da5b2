package tts_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	internaltts "github.com/vesta-home/vesta/internal/tts"
	playermock "github.com/vesta-home/vesta/pkg/audio/player/mock"
	ttsmock "github.com/vesta-home/vesta/pkg/provider/tts/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

const playTimeout = 2 * time.Second

// newQueue builds a queue over the given mocks and registers cleanup.
func newQueue(t *testing.T, synth *ttsmock.Synthesizer, p *playermock.Player, opts ...internaltts.QueueOption) *internaltts.Queue {
	t.Helper()
	q := internaltts.NewQueue(synth, p, opts...)
	t.Cleanup(func() { q.Shutdown(true) })
	return q
}

// playedTexts recovers the sentence text from the placeholder clips the
// synthesizer mock produces ("wav:<text>").
func playedTexts(p *playermock.Player) []string {
	var out []string
	for _, wav := range p.PlayedWAVs {
		out = append(out, string(wav[len("wav:"):]))
	}
	return out
}

// ─── TestPlayNext_FIFOUnderRandomLatency ─────────────────────────────────────

// TestPlayNext_FIFOUnderRandomLatency enqueues three sentences whose
// synthesis completes out of order ("two" first) and verifies playback still
// follows enqueue order exactly.
func TestPlayNext_FIFOUnderRandomLatency(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{
		DelayFor: map[string]time.Duration{
			"one":   120 * time.Millisecond,
			"two":   5 * time.Millisecond,
			"three": 60 * time.Millisecond,
		},
	}
	p := &playermock.Player{AutoFinish: true}
	q := newQueue(t, synth, p, internaltts.WithWorkers(2))

	for _, s := range []string{"one", "two", "three"} {
		if err := q.Enqueue(s, "en"); err != nil {
			t.Fatalf("Enqueue(%q): %v", s, err)
		}
	}

	for i := range 3 {
		if !q.PlayNext(playTimeout) {
			t.Fatalf("PlayNext %d returned false", i)
		}
	}

	want := []string{"one", "two", "three"}
	got := playedTexts(p)
	if len(got) != len(want) {
		t.Fatalf("played clips: want %d, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("playback %d: want %q, got %q", i, w, got[i])
		}
	}
}

// ─── TestPlayNext_EmptyQueueTimesOut ─────────────────────────────────────────

func TestPlayNext_EmptyQueueTimesOut(t *testing.T) {
	t.Parallel()

	q := newQueue(t, &ttsmock.Synthesizer{}, &playermock.Player{AutoFinish: true})

	start := time.Now()
	if q.PlayNext(30 * time.Millisecond) {
		t.Error("PlayNext on empty queue should return false")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("PlayNext blocked %v past its timeout", elapsed)
	}
}

// ─── TestPlayNext_SynthesisErrorDoesNotPoisonQueue ───────────────────────────

func TestPlayNext_SynthesisErrorDoesNotPoisonQueue(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{
		ErrFor: map[string]error{"bad": errors.New("synthesis backend down")},
	}
	p := &playermock.Player{AutoFinish: true}
	q := newQueue(t, synth, p)

	if err := q.Enqueue("bad", "en"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue("good", "en"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if q.PlayNext(playTimeout) {
		t.Error("PlayNext for the failed sentence should return false")
	}
	if !q.PlayNext(playTimeout) {
		t.Error("PlayNext for the following sentence should succeed")
	}
	if got := playedTexts(p); len(got) != 1 || got[0] != "good" {
		t.Errorf("played clips: want [good], got %v", got)
	}
}

// ─── TestPlayNext_SynthesisTimeout ───────────────────────────────────────────

func TestPlayNext_SynthesisTimeout(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{Delay: time.Second}
	q := newQueue(t, synth, &playermock.Player{AutoFinish: true})

	if err := q.Enqueue("slow sentence", "en"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	start := time.Now()
	if q.PlayNext(40 * time.Millisecond) {
		t.Error("PlayNext should give up at the synthesis timeout")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("PlayNext blocked %v past its timeout", elapsed)
	}
}

// ─── TestInterrupt ───────────────────────────────────────────────────────────

// TestInterrupt_KillsCurrentAndDrainsPending starts a long playback on a
// second goroutine, interrupts it, and verifies the handle was killed, the
// backlog drained, and PlayNext reported false.
func TestInterrupt_KillsCurrentAndDrainsPending(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{}
	p := &playermock.Player{} // playbacks finish only when told to
	q := newQueue(t, synth, p)

	for _, s := range []string{"first", "second", "third"} {
		if err := q.Enqueue(s, "en"); err != nil {
			t.Fatalf("Enqueue(%q): %v", s, err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	played := true
	go func() {
		defer wg.Done()
		played = q.PlayNext(playTimeout)
	}()

	// Wait for playback of "first" to start.
	deadline := time.Now().Add(playTimeout)
	for p.Last() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	pb := p.Last()
	if pb == nil {
		t.Fatal("playback never started")
	}

	q.Interrupt()
	wg.Wait()

	if played {
		t.Error("interrupted PlayNext should return false")
	}
	if !pb.Killed() {
		t.Error("in-flight playback was not killed")
	}
	if q.HasPending() {
		t.Errorf("pending after interrupt: want none, depth %d", q.Depth())
	}
}

// TestInterrupt_Idempotent calls Interrupt repeatedly, including on an empty
// queue, and expects no panic and a clean pending state.
func TestInterrupt_Idempotent(t *testing.T) {
	t.Parallel()

	q := newQueue(t, &ttsmock.Synthesizer{}, &playermock.Player{AutoFinish: true})

	q.Interrupt()
	q.Interrupt()

	if err := q.Enqueue("hello", "en"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	q.Interrupt()
	q.Interrupt()

	if q.HasPending() {
		t.Errorf("pending after interrupts: want none, depth %d", q.Depth())
	}
	if q.PlayNext(30 * time.Millisecond) {
		t.Error("PlayNext after interrupt drained the queue should return false")
	}
}

// TestEnqueue_ClearsInterrupted verifies that new content supersedes a prior
// interruption.
func TestEnqueue_ClearsInterrupted(t *testing.T) {
	t.Parallel()

	p := &playermock.Player{AutoFinish: true}
	q := newQueue(t, &ttsmock.Synthesizer{}, p)

	q.Interrupt()

	if err := q.Enqueue("fresh content", "en"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !q.PlayNext(playTimeout) {
		t.Error("PlayNext after post-interrupt Enqueue should play")
	}
	if got := playedTexts(p); len(got) != 1 || got[0] != "fresh content" {
		t.Errorf("played clips: want [fresh content], got %v", got)
	}
}

// ─── TestDepth ───────────────────────────────────────────────────────────────

func TestDepth(t *testing.T) {
	t.Parallel()

	synth := &ttsmock.Synthesizer{Delay: 200 * time.Millisecond}
	q := newQueue(t, synth, &playermock.Player{AutoFinish: true})

	if q.HasPending() || q.Depth() != 0 {
		t.Errorf("fresh queue: want depth 0, got %d", q.Depth())
	}
	for i, s := range []string{"a", "b", "c"} {
		if err := q.Enqueue(s, "en"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if got := q.Depth(); got != i+1 {
			t.Errorf("depth after %d enqueues: want %d, got %d", i+1, i+1, got)
		}
	}
	if !q.HasPending() {
		t.Error("HasPending: want true")
	}
}

// ─── TestShutdown ────────────────────────────────────────────────────────────

func TestShutdown_RefusesNewWork(t *testing.T) {
	t.Parallel()

	q := internaltts.NewQueue(&ttsmock.Synthesizer{}, &playermock.Player{AutoFinish: true})
	q.Shutdown(true)
	q.Shutdown(true) // idempotent

	if err := q.Enqueue("late", "en"); !errors.Is(err, internaltts.ErrQueueClosed) {
		t.Errorf("Enqueue after Shutdown: want ErrQueueClosed, got %v", err)
	}
}
