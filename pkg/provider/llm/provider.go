// Package llm defines the Provider interface for the remote language-model
// gateway.
//
// The gateway turns a transcribed command into the assistant's reply. The
// pipeline consumes replies as a token stream so sentence-level synthesis can
// start before generation finishes.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the gateway needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// requests greedy decoding.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Providers without a dedicated system field
	// prepend it as a "system"-role message.
	SystemPrompt string
}

// Chunk is a single token or fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty when
	// the chunk carries only a FinishReason.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped: "stop" (natural end), "length" (MaxTokens reached), "error"
	// (mid-stream failure), or "" (non-final chunk).
	FinishReason string
}

// Provider is the abstraction over any LLM gateway backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled the method must return (or
// close its channel) as quickly as possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only
	// channel that emits Chunk values as they arrive. The channel is closed
	// by the implementation when generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors after
	// the stream has started surface as a Chunk with FinishReason "error";
	// the initial error return is non-nil only for failures that prevent
	// the stream from starting. The returned channel is never nil when
	// error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)
}

// Complete sends req to p and waits for the full response text. It is a
// convenience wrapper around StreamCompletion for callers that do not need
// incremental output, such as command-line tooling and diagnostics.
func Complete(ctx context.Context, p Provider, req CompletionRequest) (string, error) {
	chunks, err := p.StreamCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			return full.String(), fmt.Errorf("llm: stream failed: %s", chunk.Text)
		}
		full.WriteString(chunk.Text)
	}
	if err := ctx.Err(); err != nil {
		return full.String(), err
	}
	return full.String(), nil
}
