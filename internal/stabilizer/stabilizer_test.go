package stabilizer

import (
	"sync"
	"testing"
)

func TestStabilizer_ResetClearsHistory(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Commit("hello")
	s.Stabilize("pending words")
	s.Reset()
	if got := s.StableHistory(); got != "" {
		t.Fatalf("expected empty history, got %q", got)
	}
	if got := s.Pending(); got != "" {
		t.Fatalf("expected no pending text, got %q", got)
	}
}

func TestStabilizer_CommitJoinsWithSingleSpace(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Commit("a")
	s.Commit("b")
	if got := s.StableHistory(); got != "a b" {
		t.Fatalf("expected %q, got %q", "a b", got)
	}
	s.Commit("")
	if got := s.StableHistory(); got != "a b" {
		t.Fatalf("expected empty commit to leave history alone, got %q", got)
	}
}

func TestStabilizer_EmptyHypothesisIsSilence(t *testing.T) {
	for _, policy := range []Policy{PolicyExternalCommit, PolicyLocalAgreement} {
		s := New(policy)
		s.Commit("earlier text")
		s.Stabilize("something new")
		c := s.Stabilize("")
		if c.Stable != "earlier text" || c.Unstable != "" || c.Committed != "" {
			t.Fatalf("%s: unexpected caption for silence: %+v", policy, c)
		}
	}
}

func TestStabilizer_ExternalReturnsHypothesisAsUnstable(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Commit("before")
	c := s.Stabilize("hello")
	if c.Stable != "before" || c.Unstable != "hello" {
		t.Fatalf("unexpected caption: %+v", c)
	}
	c = s.Stabilize("hello world")
	if c.Stable != "before" || c.Unstable != "hello world" || c.Committed != "" {
		t.Fatalf("expected external policy to never commit on its own: %+v", c)
	}
}

func TestStabilizer_AgreementCommitsPrefixOnce(t *testing.T) {
	s := New(PolicyLocalAgreement)

	c := s.Stabilize("the quick")
	if c.Committed != "" || c.Unstable != "the quick" {
		t.Fatalf("first hypothesis should be unstable: %+v", c)
	}
	c = s.Stabilize("the quick brown")
	if c.Committed != "the quick" || c.Stable != "the quick" || c.Unstable != "brown" {
		t.Fatalf("expected agreed prefix committed: %+v", c)
	}
	c = s.Stabilize("the quick brown fox")
	if c.Committed != "brown" || c.Stable != "the quick brown" || c.Unstable != "fox" {
		t.Fatalf("expected only new agreement committed: %+v", c)
	}
	c = s.Stabilize("the quick brown fox")
	if c.Stable != "the quick brown fox" || c.Unstable != "" {
		t.Fatalf("unexpected caption: %+v", c)
	}
	c = s.Stabilize("the quick brown fox")
	if c.Committed != "" || c.Stable != "the quick brown fox" {
		t.Fatalf("expected no duplicate commit: %+v", c)
	}
}

func TestStabilizer_AgreementRevisionDoesNotRewriteHistory(t *testing.T) {
	s := New(PolicyLocalAgreement)
	s.Stabilize("i scream")
	s.Stabilize("i scream for")
	c := s.Stabilize("ice cream")
	if c.Stable != "i scream" {
		t.Fatalf("history must stay append-only, got %q", c.Stable)
	}
	if c.Unstable != "" || c.Committed != "" {
		t.Fatalf("expected the revision to count as already committed: %+v", c)
	}
}

func TestStabilizer_AgreementRevisionCommitsOnlyNewWords(t *testing.T) {
	s := New(PolicyLocalAgreement)
	s.Stabilize("the cat sat")
	s.Stabilize("the cat sat on")
	s.Stabilize("a cat sat on the mat")
	c := s.Stabilize("a cat sat on the mat")
	if got := s.StableHistory(); got != "the cat sat on the mat" {
		t.Fatalf("expected no repeated words, got %q", got)
	}
	if c.Unstable != "" {
		t.Fatalf("unexpected unstable text: %+v", c)
	}
}

func TestStabilizer_AgreementShorterRevisionKeepsWindow(t *testing.T) {
	s := New(PolicyLocalAgreement)
	s.Stabilize("one two three")
	s.Stabilize("one two three")
	s.Stabilize("one two")
	s.Stabilize("one two three four")
	s.Stabilize("one two three four")
	if got := s.StableHistory(); got != "one two three four" {
		t.Fatalf("unexpected history: %q", got)
	}
}

func TestStabilizer_FinalizeAfterSettleDoesNotDuplicate(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Stabilize("good morning")
	c := s.SettlePending()
	if c.Committed != "good morning" || c.Stable != "good morning" {
		t.Fatalf("unexpected settle: %+v", c)
	}

	c = s.Stabilize("good morning everyone")
	if c.Unstable != "everyone" {
		t.Fatalf("expected settled words stripped from unstable text: %+v", c)
	}

	c = s.Finalize("good morning everyone")
	if c.Committed != "everyone" || c.Stable != "good morning everyone" {
		t.Fatalf("unexpected finalize: %+v", c)
	}

	c = s.Stabilize("next sentence")
	if c.Unstable != "next sentence" || c.Stable != "good morning everyone" {
		t.Fatalf("expected a fresh utterance after finalize: %+v", c)
	}
}

func TestStabilizer_PunctuatedFinalAfterSettle(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Stabilize("good morning everyone")
	s.SettlePending()

	c := s.Finalize("Good morning, everyone.")
	if c.Committed != "" {
		t.Fatalf("expected nothing new committed, got %q", c.Committed)
	}
	if got := s.StableHistory(); got != "good morning everyone" {
		t.Fatalf("expected settled text kept once, got %q", got)
	}
}

func TestStabilizer_RevisedFinalCommitsOnlyRemainder(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Stabilize("to be or")
	s.SettlePending()

	c := s.Stabilize("Two bee, or not")
	if c.Unstable != "not" {
		t.Fatalf("expected only the unsettled word unstable: %+v", c)
	}
	c = s.Finalize("Two bee, or not to be.")
	if c.Committed != "not to be." {
		t.Fatalf("expected only the remainder committed, got %q", c.Committed)
	}
	if got := s.StableHistory(); got != "to be or not to be." {
		t.Fatalf("unexpected history: %q", got)
	}
}

func TestStabilizer_SettleKeepsWindowOpen(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Settle("one two")
	s.Settle("one two three")
	if got := s.StableHistory(); got != "one two three" {
		t.Fatalf("unexpected history: %q", got)
	}
	s.Finalize("one two three")
	if got := s.StableHistory(); got != "one two three" {
		t.Fatalf("expected finalize of settled text to add nothing, got %q", got)
	}
}

func TestStabilizer_SettlePendingWithoutPending(t *testing.T) {
	s := New(PolicyExternalCommit)
	s.Commit("done")
	c := s.SettlePending()
	if c.Committed != "" || c.Stable != "done" {
		t.Fatalf("unexpected caption: %+v", c)
	}
}

func TestStabilizer_ConcurrentCommitsStayAppendOnly(t *testing.T) {
	s := New(PolicyExternalCommit)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Commit("w")
		}()
	}
	wg.Wait()
	want := "w"
	for i := 1; i < 50; i++ {
		want += " w"
	}
	if got := s.StableHistory(); got != want {
		t.Fatalf("unexpected history after concurrent commits: %q", got)
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]Policy{
		"":          PolicyExternalCommit,
		"external":  PolicyExternalCommit,
		"Agreement": PolicyLocalAgreement,
	}
	for in, want := range cases {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParsePolicy("magic"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
