package fields

import (
	"reflect"
	"testing"
)

func TestSplit_Scenario(t *testing.T) {
	line := `hello "1 [] 2"[world] [] [""]  bj`
	want := []string{"hello", "1 [] 2", "world", "", `""`, "bj"}
	got := Split(line)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split(%q):\n got  %#v\n want %#v", line, got, want)
	}
}

func TestSplit_Simple(t *testing.T) {
	got := Split("a b  c   d")
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestSplit_TrailingToken(t *testing.T) {
	got := Split("a b c")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestSplit_Escape(t *testing.T) {
	got := Split(`a\ b c`)
	want := []string{"a b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestSplit_Empty(t *testing.T) {
	if got := Split(""); len(got) != 0 {
		t.Fatalf("expected no tokens for empty line, got %#v", got)
	}
	if got := Split("   "); len(got) != 0 {
		t.Fatalf("expected no tokens for whitespace-only line, got %#v", got)
	}
}

func TestIndex(t *testing.T) {
	cases := []struct {
		count, pos, want int
	}{
		{5, 1, 0},
		{5, 5, 4},
		{5, 6, -1},
		{5, -1, 4},
		{5, -5, 0},
		{5, -6, -1},
		{5, 0, -1},
	}
	for _, c := range cases {
		if got := Index(c.count, c.pos); got != c.want {
			t.Errorf("Index(%d,%d) = %d, want %d", c.count, c.pos, got, c.want)
		}
	}
}
