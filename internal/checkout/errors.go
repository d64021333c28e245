package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionClosed is returned when a committed or abandoned session is
// used again.
var ErrSessionClosed = errors.New("checkout session is closed")

// ValidationError rejects bad caller input before anything is mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ItemNotInInventoryError means a prescription drug has no matching
// inventory item.
type ItemNotInInventoryError struct {
	Name string
}

func (e *ItemNotInInventoryError) Error() string {
	return fmt.Sprintf("%s not found in inventory", e.Name)
}

// ExpiredItemsError fails a commit that contains expired items. Nothing is
// written when this is returned; the session stays open so the cashier can
// remove the offending lines.
type ExpiredItemsError struct {
	Items []string
}

func (e *ExpiredItemsError) Error() string {
	return "expired items in cart: " + strings.Join(e.Items, ", ")
}
