package repair

import (
	"strings"
	"testing"
)

var testTools = []string{"notes_manager", "web_search"}

func TestSanitizeToolChatter_NoChatterUntouched(t *testing.T) {
	in := "Here is your summary for today."
	if got := SanitizeToolChatter(in, testTools); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestSanitizeToolChatter_NoToolMentionUntouched(t *testing.T) {
	in := "set ratio to=5 and carry on"
	if got := SanitizeToolChatter(in, testTools); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestSanitizeToolChatter_ReturnsLastCleanBlock(t *testing.T) {
	in := "to=notes_manager commentary json\nto=notes_manager commentary\n\n" +
		"Your notes: buy milk, call Sam."
	got := SanitizeToolChatter(in, testTools)
	if got != "Your notes: buy milk, call Sam." {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeToolChatter_SkipsTrailingChatterBlock(t *testing.T) {
	in := "Your notes: buy milk.\n\nto=notes_manager commentary\n\nneed proper json here"
	got := SanitizeToolChatter(in, testTools)
	if got != "Your notes: buy milk." {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeToolChatter_CollapsesRuns(t *testing.T) {
	in := "to=notes_manager commentary to=notes_manager commentary ok here are your notes"
	got := SanitizeToolChatter(in, testTools)
	if strings.Contains(got, "to=notes_manager") {
		t.Errorf("run not collapsed: %q", got)
	}
	if !strings.Contains(got, "here are your notes") {
		t.Errorf("real content lost: %q", got)
	}
}

func TestSanitizeToolChatter_AllChatterReturnsOriginal(t *testing.T) {
	in := "to=notes_manager to=notes_manager"
	if got := SanitizeToolChatter(in, testTools); got != in {
		t.Errorf("got %q, want original when cleaning erases everything", got)
	}
}

func TestSanitizeToolChatter_Idempotent(t *testing.T) {
	inputs := []string{
		"plain text, no chatter",
		"to=notes_manager commentary to=notes_manager commentary the answer is 42",
		"to=notes_manager json chatter\n\nThe real answer.",
		"to=notes_manager to=notes_manager",
	}
	for _, in := range inputs {
		once := SanitizeToolChatter(in, testTools)
		twice := SanitizeToolChatter(once, testTools)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
