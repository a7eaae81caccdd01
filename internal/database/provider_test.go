package database

import (
	"errors"
	"testing"
)

func resetBackend(t *testing.T) {
	t.Helper()
	backendMu.Lock()
	backend = nil
	backendMu.Unlock()
	t.Cleanup(func() {
		backendMu.Lock()
		backend = nil
		backendMu.Unlock()
	})
}

func TestGetBackend_NotRegistered(t *testing.T) {
	resetBackend(t)

	b, err := GetBackend()
	if !errors.Is(err, ErrBackendNotInitialized) {
		t.Errorf("expected ErrBackendNotInitialized, got %v", err)
	}
	if b != nil {
		t.Errorf("expected nil backend, got %+v", b)
	}
}

func TestRegisterBackend(t *testing.T) {
	resetBackend(t)

	RegisterBackend(Backend{})
	b, err := GetBackend()
	if err != nil {
		t.Fatalf("GetBackend() error: %v", err)
	}
	if b == nil {
		t.Fatal("expected registered backend")
	}
	if b.Index != nil {
		t.Error("expected optional index to stay nil")
	}
}
