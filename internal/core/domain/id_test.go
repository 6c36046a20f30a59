package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("expected a UUID, got %q: %v", id1, err)
	}
}
