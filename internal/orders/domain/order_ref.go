package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OrderRefKind tells which key an ambiguous order reference resolves to.
type OrderRefKind int

const (
	OrderRefInvalid OrderRefKind = iota
	OrderRefByNumber
	OrderRefByUUID
	OrderRefByID
)

func (k OrderRefKind) String() string {
	switch k {
	case OrderRefByNumber:
		return "order_number"
	case OrderRefByUUID:
		return "uuid"
	case OrderRefByID:
		return "id"
	default:
		return "invalid"
	}
}

type OrderRef struct {
	Kind  OrderRefKind
	Value string
}

// ClassifyOrderRef tries order number, then UUID v4, then native id.
func ClassifyOrderRef(s string) OrderRef {
	s = strings.TrimSpace(s)
	switch {
	case IsOrderNumber(s):
		return OrderRef{Kind: OrderRefByNumber, Value: s}
	case isUUIDv4(s):
		return OrderRef{Kind: OrderRefByUUID, Value: strings.ToLower(s)}
	case IsNativeID(s):
		return OrderRef{Kind: OrderRefByID, Value: s}
	default:
		return OrderRef{Kind: OrderRefInvalid, Value: s}
	}
}

// ParseOrderRef is ClassifyOrderRef that fails on unrecognised input.
func ParseOrderRef(s string) (OrderRef, error) {
	ref := ClassifyOrderRef(s)
	if ref.Kind == OrderRefInvalid {
		return ref, fmt.Errorf("%w: %q", ErrInvalidOrderRef, s)
	}
	return ref, nil
}

func isUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4
}
