package stabilizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

type Policy string

const (
	// PolicyExternalCommit treats every hypothesis as unstable until the
	// caller commits, settles or finalizes it.
	PolicyExternalCommit Policy = "external"
	// PolicyLocalAgreement commits the word prefix two consecutive
	// hypotheses agree on.
	PolicyLocalAgreement Policy = "agreement"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyExternalCommit:
		return PolicyExternalCommit, nil
	case PolicyLocalAgreement:
		return PolicyLocalAgreement, nil
	default:
		return "", fmt.Errorf("unknown stabilize policy: %q", s)
	}
}

// Caption is the rendered split of a hypothesis. Committed holds only the
// text this call appended to the history.
type Caption struct {
	Stable    string
	Unstable  string
	Committed string
}

// Stabilizer splits rolling recognizer hypotheses into append-only stable
// history and a live unstable remainder. Agreement works on whitespace
// separated words, so unspaced scripts only settle at commit boundaries.
type Stabilizer struct {
	mu      sync.Mutex
	policy  Policy
	history string
	// words of the current utterance already in history
	window  []string
	prev    []string
	pending string
}

func New(policy Policy) *Stabilizer {
	if policy == "" {
		policy = PolicyExternalCommit
	}
	return &Stabilizer{policy: policy}
}

func (s *Stabilizer) Stabilize(hypothesis string) Caption {
	s.mu.Lock()
	defer s.mu.Unlock()

	words := strings.Fields(hypothesis)
	if len(words) == 0 {
		s.prev = nil
		s.pending = ""
		return Caption{Stable: s.history}
	}
	if len(s.window) == 0 && s.policy == PolicyExternalCommit {
		s.pending = hypothesis
		return Caption{Stable: s.history, Unstable: hypothesis}
	}

	covered := s.alignWindowLocked(words)
	committed := ""
	if s.policy == PolicyLocalAgreement {
		agreed := covered
		if len(s.prev) > covered {
			agreed += commonPrefix(s.prev[covered:], words[covered:])
		}
		if agreed > covered {
			committed = strings.Join(words[covered:agreed], " ")
			s.appendLocked(committed)
			s.window = append(s.window, words[covered:agreed]...)
			covered = agreed
		}
		s.prev = words
	}
	s.pending = strings.Join(words[covered:], " ")
	return Caption{Stable: s.history, Unstable: s.pending, Committed: committed}
}

// Commit appends text to the history and ends the current utterance.
func (s *Stabilizer) Commit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(strings.TrimSpace(text))
	s.closeWindowLocked()
}

// Settle commits whatever part of the hypothesis the current utterance has
// not committed yet and keeps the utterance open.
func (s *Stabilizer) Settle(hypothesis string) Caption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settleLocked(strings.Fields(hypothesis))
}

// Finalize settles the hypothesis and ends the utterance.
func (s *Stabilizer) Finalize(hypothesis string) Caption {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.settleLocked(strings.Fields(hypothesis))
	s.closeWindowLocked()
	return c
}

// SettlePending commits the last unstable text.
func (s *Stabilizer) SettlePending() Caption {
	s.mu.Lock()
	defer s.mu.Unlock()
	rest := strings.Fields(s.pending)
	c := Caption{Stable: s.history}
	if len(rest) == 0 {
		return c
	}
	c.Committed = strings.Join(rest, " ")
	s.appendLocked(c.Committed)
	s.window = append(s.window, rest...)
	s.prev = nil
	s.pending = ""
	c.Stable = s.history
	return c
}

func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = ""
	s.closeWindowLocked()
}

func (s *Stabilizer) StableHistory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

func (s *Stabilizer) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Stabilizer) settleLocked(words []string) Caption {
	if len(words) == 0 {
		s.pending = ""
		return Caption{Stable: s.history}
	}
	rest := words[s.alignWindowLocked(words):]
	committed := strings.Join(rest, " ")
	s.appendLocked(committed)
	s.window = append(s.window, rest...)
	s.prev = nil
	s.pending = ""
	return Caption{Stable: s.history, Committed: committed}
}

// alignWindowLocked returns how many leading words of the hypothesis the
// current utterance has already committed. A recognizer revision of committed
// words (case, punctuation or a different word) still counts as committed;
// the window adopts the revised spelling so later hypotheses align with it.
func (s *Stabilizer) alignWindowLocked(words []string) int {
	if commonPrefix(s.window, words) == len(s.window) {
		return len(s.window)
	}
	covered := min(len(s.window), len(words))
	copy(s.window, words[:covered])
	return covered
}

func (s *Stabilizer) appendLocked(text string) {
	if text == "" {
		return
	}
	if s.history == "" {
		s.history = text
		return
	}
	s.history += " " + text
}

func (s *Stabilizer) closeWindowLocked() {
	s.window = nil
	s.prev = nil
	s.pending = ""
}

// commonPrefix counts leading words that match ignoring case and punctuation.
func commonPrefix(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if normalize(a[i]) != normalize(b[i]) {
			return i
		}
	}
	return n
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}
