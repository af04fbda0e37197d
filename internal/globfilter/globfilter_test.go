package globfilter

import "testing"

func TestMatchDefaultIncludesEverything(t *testing.T) {
	f, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Match("any/path/file.bin") {
		t.Error("expected default filter to match everything")
	}
}

func TestMatchExcludeWinsOverInclude(t *testing.T) {
	f, err := New([]string{"**/*.bin"}, []string{"**/skip/**"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Match("data/skip/file.bin") {
		t.Error("expected exclude to win over include")
	}
	if !f.Match("data/keep/file.bin") {
		t.Error("expected non-excluded file.bin to match")
	}
	if f.Match("data/keep/file.txt") {
		t.Error("expected file not matching include to be rejected")
	}
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	if _, err := New([]string{"["}, nil); err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
}
