package checkout

import (
	"fmt"
	"strings"

	"pharmadesk/m/domain"
)

// renderReceipt formats a committed purchase as plain text for printing or
// display. Layout mirrors the till receipt: header, one row per line item,
// grand total.
func renderReceipt(record domain.PurchaseRecord) string {
	var b strings.Builder
	b.WriteString("Receipt\n")
	fmt.Fprintf(&b, "Date: %s\n", record.Date.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Payment Method: %s\n", record.PaymentMethod)
	b.WriteString("Items Purchased:\n")
	for _, item := range record.Items {
		fmt.Fprintf(&b, "  %s x %d @ $%.2f = $%.2f\n", item.Name, item.Quantity, item.UnitPrice, item.LineTotal)
	}
	fmt.Fprintf(&b, "Grand Total: $%.2f\n", record.TotalCost)
	return b.String()
}
