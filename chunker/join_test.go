package chunker

import (
	"reflect"
	"testing"
)

func TestJoinTextFragments(t *testing.T) {
	fragments := []string{
		"This is a sentence.",
		"Another sentence starts here",
		"and continues on this line",
		"without stopping.",
		"Final sentence.",
	}
	want := []string{
		"This is a sentence.",
		"Another sentence starts here and continues on this line without stopping.",
		"Final sentence.",
	}

	got := JoinTextFragments(fragments)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("JoinTextFragments() = %#v, want %#v", got, want)
	}
}

func TestJoinTextFragmentsEmpty(t *testing.T) {
	if got := JoinTextFragments(nil); got != nil {
		t.Fatalf("JoinTextFragments(nil) = %#v, want nil", got)
	}
}

func TestShouldStartNewSentence(t *testing.T) {
	cases := []struct {
		current, fragment string
		want               bool
	}{
		{"", "Any text", true},
		{"End.", "Start", true},
		{"Question?", "Answer", true},
		{"No period", "continues", false},
		{"End.", "but lowercase", false},
	}
	for _, c := range cases {
		got := ShouldStartNewSentence(c.current, c.fragment)
		if got != c.want {
			t.Errorf("ShouldStartNewSentence(%q, %q) = %v, want %v", c.current, c.fragment, got, c.want)
		}
	}
}
