package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/filotex/ordermind/pkg/erp"
)

// submitOrder runs the commit pipeline: check preconditions, refetch every
// identity from the ERP, recompute totals from fresh prices, create the order
// with status draft, and clear the conversation's state only on success.
// Draft quantities are the only values trusted into the payload.
func (t *Toolset) submitOrder(ctx context.Context, conversationID string) (string, error) {
	d, err := t.drafts.GetOrCreate(ctx, conversationID)
	if err != nil {
		return "", err
	}
	// Preconditions first: a draft that is not ready causes zero ERP calls.
	ready, missing := d.Readiness()
	if !ready {
		return fmt.Sprintf("Cannot submit yet, still missing: %s.", strings.Join(missing, ", ")), nil
	}
	payload := d.Payload()

	customer, err := t.erp.GetCustomer(ctx, payload.CustomerID)
	if err != nil {
		if errors.Is(err, erp.ErrNotFound) {
			return fmt.Sprintf("ERROR: customer %s no longer exists in the ERP. Select the customer again.", payload.CustomerID), nil
		}
		return erpFailure("order submit (customer check)", err), nil
	}

	currency := customer.DefaultCurrency
	if currency == "" {
		currency = "EUR"
	}

	var (
		lines        []erp.OrderLine
		total        float64
		totalVATIncl float64
	)
	for _, item := range payload.Items {
		product, problem, err := t.findProduct(ctx, item.Code)
		if err != nil {
			return "", err
		}
		if problem != "" {
			return fmt.Sprintf("ERROR: line %q could not be verified: %s", item.Code, problem), nil
		}
		if product.Prices == nil {
			return fmt.Sprintf("ERROR: product %s has no price in the ERP. Remove the line or fix the catalog.", product.InternalID), nil
		}

		lineTotal := product.Prices.Unit * item.Quantity
		total += lineTotal
		totalVATIncl += lineTotal * (1 + product.Prices.VAT/100)

		lines = append(lines, erp.OrderLine{
			ID:       product.ID,
			ExtraID:  product.InternalID,
			Name:     product.Name,
			Quantity: item.Quantity,
			UOM:      product.UOM,
			Prices: erp.OrderPrices{
				Currency:        product.Prices.Currency,
				Unit:            product.Prices.Unit,
				VAT:             product.Prices.VAT,
				BasePrice:       product.Prices.Unit,
				DiscountPercent: 0,
			},
		})
	}

	attr := erp.CustomerAttr{ID: customer.ID, Name: customer.Name, VAT: customer.VATNo}
	if attr.VAT == "" {
		attr.VAT = "n/a"
	}
	if len(customer.Addresses) > 0 {
		attr.Address = customer.Addresses[0].Address
		attr.Country = customer.Addresses[0].Country
	}

	shippingTime := payload.ShippingTime
	if shippingTime == "" {
		shippingTime = t.now().UTC().Add(14 * 24 * time.Hour).Format(time.RFC3339)
	}
	shippingAddress := payload.ShippingAddress
	if shippingAddress == "" {
		shippingAddress = attr.Address
	}

	order := erp.SalesOrder{
		CustomerID:           customer.ID,
		CustomerAttr:         attr,
		DefaultCurrency:      currency,
		Time:                 t.now().UTC(),
		ExpectedShippingTime: shippingTime,
		ShippingAddress:      shippingAddress,
		Products:             lines,
		Status:               "draft",
		Notes:                payload.Notes,
		Version:              1,
		Total:                total,
		TotalVATIncl:         totalVATIncl,
		Priority:             0,
	}

	created, err := t.erp.CreateSalesOrder(ctx, order)
	if err != nil {
		// The draft survives so the user can retry without rebuilding it.
		return erpFailure("order submit", err), nil
	}
	if err := t.drafts.Clear(ctx, conversationID); err != nil {
		t.logger.Warn("draft.clear_failed_after_submit", "conversation_id", conversationID, "order_id", created.ID, "error", err)
	}

	t.logger.Info("order.submitted",
		"conversation_id", conversationID,
		"order_id", created.ID,
		"customer_id", customer.ID,
		"lines", len(lines),
		"total", total,
	)
	ref := created.InternalID
	if ref == "" {
		ref = created.ID
	}
	return fmt.Sprintf("Order %s submitted as a draft for %s: %d line(s), total %.2f %s (%.2f incl. VAT).",
		ref, customer.Name, len(lines), total, currency, totalVATIncl), nil
}
