// Package mock provides a test double for the llm.Provider interface.
//
// The provider streams a scripted sequence of chunks with an optional
// per-chunk delay, which lets orchestrator tests exercise incremental
// sentence chunking against a deterministic token stream.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vesta-home/vesta/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Chunks is the scripted stream. When nil, the stream is built by
	// splitting Reply on spaces (each word plus its trailing space becomes
	// one chunk) followed by a terminal "stop" chunk.
	Chunks []llm.Chunk

	// Reply is the full response text used when Chunks is nil.
	Reply string

	// ChunkDelay is an artificial inter-chunk delay.
	ChunkDelay time.Duration

	// Err, if non-nil, is returned by StreamCompletion.
	Err error

	// Requests records every request passed to StreamCompletion.
	Requests []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) script() []llm.Chunk {
	if p.Chunks != nil {
		return p.Chunks
	}
	var out []llm.Chunk
	words := strings.SplitAfter(p.Reply, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, llm.Chunk{Text: w})
	}
	out = append(out, llm.Chunk{FinishReason: "stop"})
	return out
}

// StreamCompletion records the request and streams the scripted chunks.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	err := p.Err
	chunks := p.script()
	delay := p.ChunkDelay
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// RequestCount returns how many requests were recorded. Thread-safe.
func (p *Provider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
