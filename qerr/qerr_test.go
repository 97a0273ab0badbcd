package qerr

import (
	"errors"
	"testing"
)

func TestErrorStringIncludesPositionOnlyForParseKind(t *testing.T) {
	perr := AtPos("unexpected token", 3, 7)
	want := "parse: unexpected token at 3:7"
	if perr.Error() != want {
		t.Fatalf("Error() = %q, want %q", perr.Error(), want)
	}

	serr := New(Semantic, "undeclared prefix")
	want = "semantic: undeclared prefix"
	if serr.Error() != want {
		t.Fatalf("Error() = %q, want %q", serr.Error(), want)
	}
}

func TestIsMatchesKindThroughWrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(IO, cause, "grow atoms.data")
	if !Is(wrapped, IO) {
		t.Fatal("Is(wrapped, IO) should be true")
	}
	if Is(wrapped, Corrupt) {
		t.Fatal("Is(wrapped, Corrupt) should be false")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(IO, cause, "grow atoms.data")
	if !errors.Is(wrapped, cause) {
		t.Fatal("errors.Is should see through Wrap to the original cause")
	}
}

func TestNewfFormats(t *testing.T) {
	err := Newf(Capacity, "too many patterns: %d", 33)
	want := "capacity: too many patterns: 33"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
