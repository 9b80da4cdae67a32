package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// DefaultOrderNumberPrefix is used when no prefix is configured.
const DefaultOrderNumberPrefix = "ORD"

const orderNumberDateLayout = "2006-01-02"

var (
	orderNumberPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}-\d{4}-\d{2}-\d{2}-\d{6}$`)
	prefixPattern      = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)
	suffixLimit        = big.NewInt(1_000_000)
)

// ValidOrderNumberPrefix reports whether prefix can appear in an order number.
func ValidOrderNumberPrefix(prefix string) bool {
	return prefixPattern.MatchString(prefix)
}

// NewOrderNumber returns PREFIX-YYYY-MM-DD-NNNNNN for the UTC date of now.
func NewOrderNumber(prefix string, now time.Time) (string, error) {
	if !ValidOrderNumberPrefix(prefix) {
		return "", fmt.Errorf("invalid order number prefix %q", prefix)
	}
	n, err := rand.Int(rand.Reader, suffixLimit)
	if err != nil {
		return "", fmt.Errorf("generate order number suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, now.UTC().Format(orderNumberDateLayout), n.Int64()), nil
}

// NewOrderUUID returns the internal correlation id of an order.
func NewOrderUUID() string {
	return uuid.NewString()
}

func IsOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}

// OrderNumberDate extracts the calendar date embedded in an order number.
func OrderNumberDate(orderNumber string) (time.Time, error) {
	if !IsOrderNumber(orderNumber) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidOrderRef, orderNumber)
	}
	start := len(orderNumber) - len("2006-01-02-000000")
	date, err := time.Parse(orderNumberDateLayout, orderNumber[start:start+len(orderNumberDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidOrderRef, err)
	}
	return date, nil
}
