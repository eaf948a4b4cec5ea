package transport

import (
	"bytes"
	"testing"
)

func TestNewLocalCIDUnique(t *testing.T) {
	a, err := NewLocalCID(nil)
	if err != nil {
		t.Fatalf("NewLocalCID: %v", err)
	}
	b, err := NewLocalCID(nil)
	if err != nil {
		t.Fatalf("NewLocalCID: %v", err)
	}
	if len(a) != MaxCIDLength || len(b) != MaxCIDLength {
		t.Fatalf("expected %d-byte CIDs, got %d and %d", MaxCIDLength, len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatalf("expected distinct generated CIDs")
	}
}

func TestValidateCIDLength(t *testing.T) {
	if err := validateCIDLength(MaxCIDLength); err != nil {
		t.Fatalf("expected max length to validate, got %v", err)
	}
	if err := validateCIDLength(MaxCIDLength + 1); err == nil {
		t.Fatalf("expected over-length cid to fail validation")
	}
}
