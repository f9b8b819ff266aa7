package util

import "testing"

func TestPlural(t *testing.T) {
	if got := Plural(1, "row", "rows"); got != "row" {
		t.Fatalf("got %q", got)
	}
	if got := Plural(3, "row", "rows"); got != "rows" {
		t.Fatalf("got %q", got)
	}
}

func TestJoinInts(t *testing.T) {
	if got := JoinInts([]int{1, 2, 10}); got != "1, 2, 10" {
		t.Fatalf("got %q", got)
	}
	if got := JoinInts(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
