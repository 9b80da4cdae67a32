package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

func TestClassifyOrderRef(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.OrderRefKind
	}{
		{"order number", "ORD-2025-01-31-004213", domain.OrderRefByNumber},
		{"order number with custom prefix", "SHOP-2024-12-01-999999", domain.OrderRefByNumber},
		{"uuid v4", "3f1c2a7e-8a44-4c8b-9f62-1d2e3c4b5a69", domain.OrderRefByUUID},
		{"uuid v4 uppercase", "3F1C2A7E-8A44-4C8B-9F62-1D2E3C4B5A69", domain.OrderRefByUUID},
		{"native id", "65a1f0c2e4b0a1b2c3d4e5f6", domain.OrderRefByID},
		{"uuid v1 is not accepted", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", domain.OrderRefInvalid},
		{"order number with short suffix", "ORD-2025-01-31-4213", domain.OrderRefInvalid},
		{"lowercase prefix", "ord-2025-01-31-004213", domain.OrderRefInvalid},
		{"uuid without dashes", "3f1c2a7e8a444c8b9f621d2e3c4b5a69", domain.OrderRefInvalid},
		{"short hex", "65a1f0c2", domain.OrderRefInvalid},
		{"empty", "", domain.OrderRefInvalid},
		{"garbage", "not-an-order", domain.OrderRefInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.ClassifyOrderRef(tt.input)
			if got.Kind != tt.want {
				t.Errorf("ClassifyOrderRef(%q) = %s, want %s", tt.input, got.Kind, tt.want)
			}
		})
	}
}

func TestParseOrderRef(t *testing.T) {
	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := domain.ParseOrderRef("12345")
		if !errors.Is(err, domain.ErrInvalidOrderRef) {
			t.Fatalf("expected ErrInvalidOrderRef, got: %v", err)
		}
	})

	t.Run("normalises uuid case", func(t *testing.T) {
		ref, err := domain.ParseOrderRef("3F1C2A7E-8A44-4C8B-9F62-1D2E3C4B5A69")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if ref.Value != "3f1c2a7e-8a44-4c8b-9f62-1d2e3c4b5a69" {
			t.Errorf("unexpected value %q", ref.Value)
		}
	})
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2025, 7, 4, 23, 30, 0, 0, time.UTC)

	t.Run("generates a classifiable number", func(t *testing.T) {
		number, err := domain.NewOrderNumber("ORD", now)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !strings.HasPrefix(number, "ORD-2025-07-04-") {
			t.Errorf("unexpected order number %q", number)
		}
		if kind := domain.ClassifyOrderRef(number).Kind; kind != domain.OrderRefByNumber {
			t.Errorf("generated number classified as %s", kind)
		}
	})

	t.Run("rejects invalid prefix", func(t *testing.T) {
		if _, err := domain.NewOrderNumber("ord", now); err == nil {
			t.Fatal("expected error for lowercase prefix")
		}
	})

	t.Run("extracts the embedded date", func(t *testing.T) {
		date, err := domain.OrderNumberDate("ORD-2025-07-04-000001")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !date.Equal(time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date %v", date)
		}
	})

	t.Run("uuid is version 4", func(t *testing.T) {
		if kind := domain.ClassifyOrderRef(domain.NewOrderUUID()).Kind; kind != domain.OrderRefByUUID {
			t.Errorf("generated uuid classified as %s", kind)
		}
	})
}
