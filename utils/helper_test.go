package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"owner@toko.id", "a.b+c@example.co.id", "x@y.io"}
	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("IsValidEmail(%q) = false, want true", email)
		}
	}
	invalid := []string{"", "toko.id", "owner@", "@toko.id", "owner@toko"}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("IsValidEmail(%q) = true, want false", email)
		}
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("081234567890", "ID"); err != nil {
		t.Errorf("valid ID mobile rejected: %v", err)
	}
	if err := ValidatePhoneNumber("123", "ID"); err == nil {
		t.Error("short number accepted")
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("UniqueSlice length: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueSlice order: want %v, got %v", want, got)
		}
	}
}

func TestValidationErrorMatching(t *testing.T) {
	err := NewValidationError("quantity", "must be positive")
	if !IsValidationError(err) {
		t.Fatal("IsValidationError = false for ValidationError")
	}
	wrapped := fmt.Errorf("recording purchase: %w", err)
	if !IsValidationError(wrapped) {
		t.Fatal("IsValidationError = false for wrapped ValidationError")
	}
	if IsValidationError(errors.New("boom")) {
		t.Fatal("IsValidationError = true for plain error")
	}
	if got := err.Error(); got != "quantity: must be positive" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestBusinessRuleErrorsUnwrap(t *testing.T) {
	err := fmt.Errorf("%w: have 2, need 5", ErrInsufficientStock)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatal("wrapped ErrInsufficientStock does not match errors.Is")
	}
	if errors.Is(err, ErrInsufficientFunds) {
		t.Fatal("stock error matched funds sentinel")
	}

	wrapped := fmt.Errorf("%w: Gudang B; migrate stock before deleting", ErrWarehouseNotEmpty)
	if !errors.Is(wrapped, ErrWarehouseNotEmpty) {
		t.Fatal("wrapped ErrWarehouseNotEmpty does not match errors.Is")
	}
}

func TestDereferencePtr(t *testing.T) {
	if got := DereferencePtr[int](nil); got != 0 {
		t.Fatalf("DereferencePtr(nil) = %d", got)
	}
	v := 7
	if got := DereferencePtr(&v); got != 7 {
		t.Fatalf("DereferencePtr(&7) = %d", got)
	}
}
