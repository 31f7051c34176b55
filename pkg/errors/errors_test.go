package errors

import (
	"io"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Fatal("wrapping nil should return nil")
	}

	err := Wrap(io.EOF, "read asset")
	if err.Error() != "read asset: EOF" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !Is(err, io.EOF) {
		t.Error("wrapped error should match io.EOF")
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(io.ErrUnexpectedEOF, "upload %s", "lobby.png")
	if err.Error() != "upload lobby.png: unexpected EOF" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if Wrapf(nil, "upload %s", "x") != nil {
		t.Error("wrapping nil should return nil")
	}
}
