package draft

import (
	"fmt"
	"strings"
)

// StateBlock renders the draft as the state section injected into the
// planner's system prompt each turn. It is the only channel through which the
// planner sees the authoritative draft.
func (d *Draft) StateBlock() string {
	var b strings.Builder
	b.WriteString("CURRENT ORDER STATE\n")
	fmt.Fprintf(&b, "Phase: %s\n", d.Phase)
	if d.Customer != nil {
		fmt.Fprintf(&b, "Customer: %s (id=%s, vat=%s, currency=%s)\n",
			d.Customer.Name, d.Customer.ID, d.Customer.VAT, d.Customer.DefaultCurrency)
	} else {
		b.WriteString("Customer: not selected\n")
	}
	if d.ShippingAddress != "" {
		fmt.Fprintf(&b, "Shipping address: %s\n", d.ShippingAddress)
	} else {
		b.WriteString("Shipping address: not set\n")
	}
	if d.ShippingTime != "" {
		fmt.Fprintf(&b, "Shipping date: %s\n", d.ShippingTime)
	} else {
		b.WriteString("Shipping date: not set\n")
	}
	if len(d.Items) == 0 {
		b.WriteString("Items: none\n")
	} else {
		fmt.Fprintf(&b, "Items (%d):\n", len(d.Items))
		for _, it := range d.Items {
			fmt.Fprintf(&b, "  - %s %s x%g %s @ %.2f %s\n",
				it.Code, it.Name, it.Quantity, it.UOM, it.UnitPrice, it.Currency)
		}
		fmt.Fprintf(&b, "Running total (excl. VAT): %.2f\n", d.Total())
	}
	if d.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", d.Notes)
	}
	return b.String()
}

// Summary is the user-facing order recap with per-line and running totals.
func (d *Draft) Summary() string {
	var b strings.Builder
	b.WriteString("Order summary\n")
	if d.Customer != nil {
		fmt.Fprintf(&b, "Customer: %s\n", d.Customer.Name)
	} else {
		b.WriteString("Customer: (not selected)\n")
	}
	if d.ShippingAddress != "" {
		fmt.Fprintf(&b, "Ship to: %s\n", d.ShippingAddress)
	}
	if d.ShippingTime != "" {
		fmt.Fprintf(&b, "Requested shipping: %s\n", d.ShippingTime)
	}
	if len(d.Items) == 0 {
		b.WriteString("No items yet.\n")
		return b.String()
	}
	for _, it := range d.Items {
		fmt.Fprintf(&b, "- %s (%s): %g %s x %.2f = %.2f %s\n",
			it.Name, it.Code, it.Quantity, it.UOM, it.UnitPrice,
			it.UnitPrice*it.Quantity, it.Currency)
	}
	fmt.Fprintf(&b, "Total (excl. VAT): %.2f\n", d.Total())
	return b.String()
}

// ContextSummary is a one-line digest suitable for logs and titles.
func (d *Draft) ContextSummary() string {
	customer := "no customer"
	if d.Customer != nil {
		customer = d.Customer.Name
	}
	return fmt.Sprintf("%s, %d items, total %.2f, phase %s",
		customer, len(d.Items), d.Total(), d.Phase)
}

// Readiness reports whether the draft satisfies the submit preconditions and
// lists whatever is still missing.
func (d *Draft) Readiness() (ready bool, missing []string) {
	if d.Customer == nil || d.Customer.ID == "" {
		missing = append(missing, "customer")
	}
	if len(d.Items) == 0 {
		missing = append(missing, "at least one item")
	}
	return len(missing) == 0, missing
}

// Payload is the submit-shaped projection of a draft. Only identities and
// quantities are trusted downstream; prices are refetched at submit time.
type Payload struct {
	CustomerID      string
	ShippingAddress string
	ShippingTime    string
	Notes           string
	Items           []LineItem
}

// Payload projects the draft for the submit pipeline.
func (d *Draft) Payload() Payload {
	p := Payload{
		ShippingAddress: d.ShippingAddress,
		ShippingTime:    d.ShippingTime,
		Notes:           d.Notes,
		Items:           d.Items,
	}
	if d.Customer != nil {
		p.CustomerID = d.Customer.ID
	}
	return p
}
