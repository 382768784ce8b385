package httperr

import (
	"fmt"
	"testing"
)

func TestIsBadRequest(t *testing.T) {
	if IsBadRequest(nil) {
		t.Fatalf("expected false for nil")
	}
	if IsBadRequest(NewBadRequest("bad")) != true {
		t.Fatalf("expected true for BadRequestError")
	}
	if IsBadRequest(assertErr("other")) {
		t.Fatalf("expected false for non-BadRequestError")
	}
	if !IsBadRequest(fmt.Errorf("wrapped: %w", NewBadRequest("bad"))) {
		t.Fatalf("expected true for wrapped BadRequestError")
	}
}

func TestIsNotFound(t *testing.T) {
	if IsNotFound(nil) || IsNotFound(NewBadRequest("x")) {
		t.Fatal("expected false")
	}
	err := NewNotFound("record not found")
	if !IsNotFound(err) || err.Error() != "record not found" {
		t.Fatalf("err=%v", err)
	}
}

func TestIsConflict(t *testing.T) {
	if IsConflict(assertErr("x")) {
		t.Fatal("expected false")
	}
	if !IsConflict(fmt.Errorf("ctx: %w", NewConflict("protected"))) {
		t.Fatal("expected true")
	}
}

func TestIsForbidden(t *testing.T) {
	if IsForbidden(NewConflict("x")) {
		t.Fatal("expected false")
	}
	if !IsForbidden(fmt.Errorf("ctx: %w", NewForbidden("superadmin only"))) {
		t.Fatal("expected true")
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
