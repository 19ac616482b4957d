package store

import "testing"

func TestUpdateBuilderNumbersPlaceholders(t *testing.T) {
	b := &updateBuilder{}
	b.set("first_name", "Ana")
	b.set("status", "active")

	if b.empty() {
		t.Fatal("builder with assignments should not be empty")
	}
	if got := b.clause(); got != "first_name=$1, status=$2" {
		t.Fatalf("unexpected clause %q", got)
	}
	if got := b.next(); got != 3 {
		t.Fatalf("expected next placeholder 3, got %d", got)
	}
	if len(b.args) != 2 || b.args[0] != "Ana" {
		t.Fatalf("unexpected args %v", b.args)
	}
}

func TestUpdateBuilderEmpty(t *testing.T) {
	b := &updateBuilder{}
	if !b.empty() {
		t.Fatal("fresh builder should be empty")
	}
	if got := b.next(); got != 1 {
		t.Fatalf("expected next placeholder 1, got %d", got)
	}
}
