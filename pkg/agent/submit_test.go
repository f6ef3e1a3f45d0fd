package agent

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filotex/ordermind/pkg/draft"
)

func buildReadyDraft(t *testing.T, ts *Toolset) {
	t.Helper()
	dispatch(t, ts, "conv", "draft_set_customer", map[string]any{"customer_id": "c-1"})
	dispatch(t, ts, "conv", "set_shipping_address", map[string]any{"address": "Via Roma 1, Milano"})
	dispatch(t, ts, "conv", "draft_add_item", map[string]any{"product": "tomatoes", "quantity": 10.0})
}

func TestSubmitWithoutPreconditionsMakesNoERPCalls(t *testing.T) {
	f := newFakeERP(t)
	ts, _ := newTestToolset(t, f)

	out := dispatch(t, ts, "conv", "submit_order", nil)
	assert.Contains(t, out, "still missing: customer, at least one item")
	assert.Zero(t, f.calls.Load())
	assert.Empty(t, f.orders)
}

func TestSubmitHydratesPricesAndTotals(t *testing.T) {
	f := newFakeERP(t)
	ts, drafts := newTestToolset(t, f)
	buildReadyDraft(t, ts)

	// The catalog price changes after the line was added. Submit must use
	// the fresh price, not the one cached in the draft.
	f.products[0].Prices.Unit = 2.0

	out := dispatch(t, ts, "conv", "submit_order", nil)
	assert.Contains(t, out, "Order SO-0001 submitted as a draft")

	require.Len(t, f.orders, 1)
	order := f.orders[0]
	assert.Equal(t, "draft", order.Status)
	assert.Equal(t, "c-1", order.CustomerID)
	require.Len(t, order.Products, 1)
	assert.Equal(t, 2.0, order.Products[0].Prices.Unit)
	assert.Equal(t, 10.0, order.Products[0].Quantity)
	assert.InDelta(t, 20.0, order.Total, 1e-9)
	assert.InDelta(t, 20.8, order.TotalVATIncl, 1e-9)
	assert.Equal(t, "Via Roma 1, Milano", order.ShippingAddress)

	// Success clears the conversation's draft.
	d, err := drafts.GetOrCreate(context.Background(), "conv")
	require.NoError(t, err)
	assert.Empty(t, d.Items)
	assert.Nil(t, d.Customer)
	assert.Equal(t, draft.PhaseCustomer, d.Phase)
}

func TestSubmitFailurePreservesDraftAndRetrySucceeds(t *testing.T) {
	f := newFakeERP(t)
	ts, drafts := newTestToolset(t, f)
	buildReadyDraft(t, ts)

	f.failOrder = http.StatusBadGateway
	out := dispatch(t, ts, "conv", "submit_order", nil)
	assert.Contains(t, out, "ERROR")
	assert.Empty(t, f.orders)

	d, err := drafts.GetOrCreate(context.Background(), "conv")
	require.NoError(t, err)
	assert.Len(t, d.Items, 1)
	require.NotNil(t, d.Customer)

	f.failOrder = 0
	out = dispatch(t, ts, "conv", "submit_order", nil)
	assert.Contains(t, out, "submitted as a draft")
	require.Len(t, f.orders, 1)
}

func TestSubmitDefaultsShippingWhenUnset(t *testing.T) {
	f := newFakeERP(t)
	ts, _ := newTestToolset(t, f)
	dispatch(t, ts, "conv", "draft_set_customer", map[string]any{"customer_id": "c-1"})
	dispatch(t, ts, "conv", "draft_add_item", map[string]any{"product": "tomatoes", "quantity": 1.0})

	// Setting the customer advanced to ADDRESS but no address was given.
	dispatch(t, ts, "conv", "submit_order", nil)

	require.Len(t, f.orders, 1)
	order := f.orders[0]
	assert.Equal(t, "Via Roma 1, Milano", order.ShippingAddress)
	assert.Equal(t, "2026-01-29T10:00:00Z", order.ExpectedShippingTime)
}

func TestSubmitMissingCustomerAborts(t *testing.T) {
	f := newFakeERP(t)
	ts, _ := newTestToolset(t, f)
	buildReadyDraft(t, ts)

	f.customers = f.customers[1:] // c-1 disappears from the ERP

	out := dispatch(t, ts, "conv", "submit_order", nil)
	assert.Contains(t, out, "no longer exists")
	assert.Empty(t, f.orders)
}
