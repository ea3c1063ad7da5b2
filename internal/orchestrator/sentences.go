// Package orchestrator drives the voice turn cycle: it owns the single-
// threaded run loop that carries a session from wake trigger through
// recording, transcription, the gateway exchange, and spoken playback, and
// the policy glue (sentence chunking, end-command detection, clarification
// heuristics) that sits between the core components.
package orchestrator

import (
	"strings"
	"unicode"
)

// SentenceChunker accumulates streamed token fragments and emits complete
// sentences. A sentence ends at the first '.', '!', or '?' that is followed
// by whitespace or the end of the buffer, so abbreviations like "Dr." and
// decimals like "3.14" inside a sentence do not split it.
//
// Not safe for concurrent use; one chunker serves one response stream.
type SentenceChunker struct {
	buf strings.Builder
}

// Feed appends one token fragment and returns any sentences it completed,
// in order. Most calls return nil.
func (c *SentenceChunker) Feed(fragment string) []string {
	c.buf.WriteString(fragment)

	var sentences []string
	for {
		s := c.buf.String()
		idx := sentenceBoundary(s)
		if idx < 0 {
			break
		}
		sentence := strings.TrimSpace(s[:idx+1])
		rest := s[idx+1:]
		c.buf.Reset()
		c.buf.WriteString(strings.TrimLeft(rest, " \t\r\n"))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// Flush returns whatever trailing text remains after the stream ends, as a
// final sentence. Returns "" when the buffer holds only whitespace.
func (c *SentenceChunker) Flush() string {
	rest := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	return rest
}

// sentenceBoundary returns the index of the first sentence-ending character
// ('.', '!', '?') that is immediately followed by whitespace. The last
// character of the buffer is never a boundary here; the end-of-stream case
// is handled by Flush.
func sentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if unicode.IsSpace(rune(s[i+1])) {
				return i
			}
		}
	}
	return -1
}
