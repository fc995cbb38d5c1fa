package utils

import (
	"errors"
	"io"
	"testing"
)

func TestConfigErrorMatchesSentinel(t *testing.T) {
	err := ConfigError("config.Validate", "bad sigma", nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	wrapped := ConfigError("security.NewValidator", "compile pattern", io.ErrUnexpectedEOF)
	if !errors.Is(wrapped, ErrConfiguration) || !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatalf("expected both sentinel and cause, got %v", wrapped)
	}
}

func TestPersistenceErrorUnwrapsCause(t *testing.T) {
	err := PersistenceError("store.LoadHistory", io.EOF)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected cause to survive wrapping")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Op != "store.LoadHistory" {
		t.Fatalf("expected AppError with op, got %#v", appErr)
	}
}
