package directory

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryFindByUsername(t *testing.T) {
	dir := NewMemory()
	dir.Add(&Principal{ID: "user-1", Username: "irfanbaqui"})

	p, err := dir.FindByUsername(context.Background(), "irfanbaqui")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if p.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", p.ID)
	}

	// Callers get a copy, not the stored record.
	p.ID = "mutated"
	again, err := dir.FindByUsername(context.Background(), "irfanbaqui")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if again.ID != "user-1" {
		t.Error("caller mutation leaked into the directory")
	}
}

func TestMemoryFindByUsernameNotFound(t *testing.T) {
	dir := NewMemory()

	if _, err := dir.FindByUsername(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByUsername(ghost) = %v, want ErrNotFound", err)
	}
}

func TestMemoryAddOverwrites(t *testing.T) {
	dir := NewMemory()
	dir.Add(&Principal{ID: "a", Username: "dup"})
	dir.Add(&Principal{ID: "b", Username: "dup"})

	p, err := dir.FindByUsername(context.Background(), "dup")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if p.ID != "b" {
		t.Errorf("ID = %q, want the later registration", p.ID)
	}
}
