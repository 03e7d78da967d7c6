package services_test

import (
	"errors"
	"strings"
	"testing"

	"zeus/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "transcribing", "dispatch", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcribing", "dispatch", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestTransientClassification(t *testing.T) {
	timeoutErr := services.Wrap(services.ErrTimeout, "transcribing", "pass", "deadline exceeded", nil)
	if !services.IsTransient(timeoutErr) {
		t.Fatalf("expected timeout to be transient: %v", timeoutErr)
	}

	validationErr := services.Wrap(services.ErrValidation, "submit", "create", "missing source_uri", nil)
	if services.IsTransient(validationErr) {
		t.Fatalf("expected validation error to be terminal: %v", validationErr)
	}
	if !services.IsTerminal(validationErr) {
		t.Fatalf("expected validation error terminal: %v", validationErr)
	}

	if services.IsTerminal(nil) {
		t.Fatal("expected nil to not be terminal")
	}
}
