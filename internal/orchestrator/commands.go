package orchestrator

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultEndPhrases are the utterances that end a conversation. Matching is
// fuzzy so recognizer misspellings ("good by", "stop listning") still land.
var defaultEndPhrases = []string{
	"goodbye",
	"good bye",
	"bye",
	"stop",
	"stop listening",
	"that's all",
	"thats all",
	"never mind",
	"cancel",
	"end conversation",
}

// defaultEndThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// end-phrase hit.
const defaultEndThreshold = 0.88

// EndCommandMatcher decides whether a transcript is an end-of-conversation
// command. Read-only after construction, safe for concurrent use.
type EndCommandMatcher struct {
	phrases   []string
	threshold float64
}

// EndCommandOption configures an EndCommandMatcher.
type EndCommandOption func(*EndCommandMatcher)

// WithEndPhrases replaces the default phrase list.
func WithEndPhrases(phrases []string) EndCommandOption {
	return func(m *EndCommandMatcher) {
		if len(phrases) > 0 {
			m.phrases = phrases
		}
	}
}

// WithEndThreshold sets the similarity cutoff in (0, 1].
func WithEndThreshold(t float64) EndCommandOption {
	return func(m *EndCommandMatcher) {
		if t > 0 && t <= 1 {
			m.threshold = t
		}
	}
}

// NewEndCommandMatcher returns a matcher with the default phrase list.
func NewEndCommandMatcher(opts ...EndCommandOption) *EndCommandMatcher {
	m := &EndCommandMatcher{
		phrases:   defaultEndPhrases,
		threshold: defaultEndThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match reports whether transcript is an end command. Exact containment of a
// phrase as a word prefix/suffix is not required; the whole normalized
// transcript is compared against each phrase with Jaro-Winkler similarity.
func (m *EndCommandMatcher) Match(transcript string) bool {
	norm := normalize(transcript)
	if norm == "" {
		return false
	}
	for _, phrase := range m.phrases {
		if norm == phrase {
			return true
		}
		if matchr.JaroWinkler(norm, phrase, false) >= m.threshold {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?,")
	return strings.Join(strings.Fields(s), " ")
}

// ClarifyFunc decides whether an assistant reply is a clarifying question
// that earns a single extra turn in single-command mode. The default is
// EndsWithQuestionMark; deployments can swap in something smarter.
type ClarifyFunc func(response string) bool

// EndsWithQuestionMark is the default clarification heuristic. It is a weak
// proxy for "is actually a clarifying question", which is why it is
// replaceable rather than baked into the state machine.
func EndsWithQuestionMark(response string) bool {
	return strings.HasSuffix(strings.TrimSpace(response), "?")
}
