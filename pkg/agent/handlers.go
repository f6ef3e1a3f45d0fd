package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/filotex/ordermind/pkg/draft"
	"github.com/filotex/ordermind/pkg/erp"
)

const searchLimit = 10

var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Toolset executes validated tool calls for one conversation. Every result is
// a plain status string fed back to the planner; failures are reported the
// same way so the planner can recover or rephrase, and only infrastructure
// faults surface as errors.
type Toolset struct {
	erp    *erp.Client
	drafts *draft.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewToolset(erpClient *erp.Client, drafts *draft.Store, logger *slog.Logger) *Toolset {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolset{erp: erpClient, drafts: drafts, logger: logger, now: time.Now}
}

// Dispatch runs one named tool with already-validated arguments.
func (t *Toolset) Dispatch(ctx context.Context, conversationID, name string, args map[string]any) (string, error) {
	switch name {
	case "search_customer":
		return t.searchCustomer(ctx, stringArg(args, "query"))
	case "draft_set_customer":
		return t.setCustomer(ctx, conversationID, stringArg(args, "customer_id"))
	case "set_shipping_address":
		return t.setShippingAddress(ctx, conversationID, stringArg(args, "address"))
	case "set_shipping_date":
		return t.setShippingDate(ctx, conversationID, stringArg(args, "date"))
	case "search_product":
		return t.searchProduct(ctx, stringArg(args, "query"))
	case "draft_add_item":
		return t.addItem(ctx, conversationID, stringArg(args, "product"), numberArg(args, "quantity"))
	case "draft_remove_item":
		return t.removeItem(ctx, conversationID, stringArg(args, "code"))
	case "set_order_notes":
		return t.setNotes(ctx, conversationID, stringArg(args, "notes"))
	case "draft_show_summary":
		return t.showSummary(ctx, conversationID)
	case "clear_session":
		return t.clearSession(ctx, conversationID)
	case "submit_order":
		return t.submitOrder(ctx, conversationID)
	case "list_warehouses":
		return t.listWarehouses(ctx)
	case "search_inventory":
		return t.searchInventory(ctx, stringArg(args, "query"))
	}
	return "", fmt.Errorf("agent: no handler for tool %q", name)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func numberArg(args map[string]any, key string) float64 {
	v, _ := args[key].(float64)
	return v
}

// erpFailure translates ERP errors into planner-readable status strings,
// keeping credential problems distinguishable from connectivity ones.
func erpFailure(op string, err error) string {
	switch {
	case errors.Is(err, erp.ErrUnauthorized):
		return fmt.Sprintf("ERROR: %s failed: the ERP rejected the credentials. The user may need to log in again.", op)
	case errors.Is(err, erp.ErrUnreachable):
		return fmt.Sprintf("ERROR: %s failed: could not reach the ERP. Ask the user to retry shortly.", op)
	default:
		return fmt.Sprintf("ERROR: %s failed: %v", op, err)
	}
}

func (t *Toolset) searchCustomer(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "ERROR: search_customer needs a non-empty query.", nil
	}
	customers, err := t.erp.SearchCustomers(ctx, query, searchLimit)
	if err != nil {
		return erpFailure("customer search", err), nil
	}
	if len(customers) == 0 {
		return fmt.Sprintf("No customers matched %q. Ask the user to spell the name differently.", query), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d customer(s):\n", len(customers))
	for _, c := range customers {
		addr := ""
		if len(c.Addresses) > 0 {
			addr = c.Addresses[0].Address
		}
		fmt.Fprintf(&b, "- id=%s name=%s vat=%s address=%s\n", c.ID, c.Name, c.VATNo, addr)
	}
	return b.String(), nil
}

func (t *Toolset) setCustomer(ctx context.Context, conversationID, customerID string) (string, error) {
	if customerID == "" {
		return "ERROR: draft_set_customer needs a customer_id.", nil
	}
	// Always refetch so the snapshot reflects the ERP record, not whatever
	// the planner remembered from the search listing.
	customer, err := t.erp.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, erp.ErrNotFound) {
			return fmt.Sprintf("ERROR: no customer with id %s. Use search_customer first.", customerID), nil
		}
		return erpFailure("customer lookup", err), nil
	}
	d, err := t.drafts.SetCustomer(ctx, conversationID, customer)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Customer set to %s (id=%s).", customer.Name, customer.ID)
	if len(customer.Addresses) > 0 {
		msg += fmt.Sprintf(" Known addresses: %s.", joinAddresses(customer.Addresses))
	}
	msg += " Next: confirm the shipping address."
	t.logger.Debug("draft.customer_set", "conversation_id", conversationID, "customer_id", customer.ID, "phase", d.Phase)
	return msg, nil
}

func joinAddresses(addrs []erp.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Address)
	}
	return strings.Join(parts, "; ")
}

func (t *Toolset) setShippingAddress(ctx context.Context, conversationID, address string) (string, error) {
	if address == "" {
		return "ERROR: set_shipping_address needs an address.", nil
	}
	if err := t.drafts.SetShippingAddress(ctx, conversationID, address); err != nil {
		return "", err
	}
	return fmt.Sprintf("Shipping address set to %q. Next: add products to the order.", address), nil
}

func (t *Toolset) setShippingDate(ctx context.Context, conversationID, date string) (string, error) {
	parsed := draft.ParseShippingTime(date, t.now())
	iso := parsed.UTC().Format(time.RFC3339)
	if err := t.drafts.SetShippingTime(ctx, conversationID, iso); err != nil {
		return "", err
	}
	return fmt.Sprintf("Shipping date set to %s (from %q).", parsed.Format("2006-01-02"), date), nil
}

func (t *Toolset) setNotes(ctx context.Context, conversationID, notes string) (string, error) {
	if err := t.drafts.SetNotes(ctx, conversationID, notes); err != nil {
		return "", err
	}
	return "Order notes saved.", nil
}

// normalizeCode strips wrapping quotes and collapses inner whitespace, which
// planners routinely add around product codes.
func normalizeCode(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	return strings.Join(strings.Fields(s), " ")
}

// findProduct resolves a product reference with a widening search: the query
// as given, then with dash and underscore punctuation stripped, then the
// first token of at least three characters.
func (t *Toolset) findProduct(ctx context.Context, ref string) (*erp.Product, string, error) {
	ref = normalizeCode(ref)
	if ref == "" {
		return nil, "ERROR: a product name or code is required.", nil
	}
	if uuidRe.MatchString(ref) {
		p, err := t.erp.GetProduct(ctx, ref)
		if err != nil {
			if errors.Is(err, erp.ErrNotFound) {
				return nil, fmt.Sprintf("ERROR: no product with id %s.", ref), nil
			}
			return nil, erpFailure("product lookup", err), nil
		}
		return p, "", nil
	}

	queries := []string{ref}
	if stripped := strings.Join(strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(ref)), " "); stripped != ref {
		queries = append(queries, stripped)
	}
	for _, tok := range strings.Fields(ref) {
		if len(tok) >= 3 && tok != ref {
			queries = append(queries, tok)
			break
		}
	}

	for _, q := range queries {
		products, err := t.erp.SearchProducts(ctx, q, searchLimit)
		if err != nil {
			return nil, erpFailure("product search", err), nil
		}
		if len(products) == 0 {
			continue
		}
		// Prefer an exact code or name match over search ranking.
		for i := range products {
			if strings.EqualFold(products[i].InternalID, ref) || strings.EqualFold(products[i].Name, ref) {
				return &products[i], "", nil
			}
		}
		return &products[0], "", nil
	}
	return nil, fmt.Sprintf("No products matched %q. Ask the user for the exact product name or code.", ref), nil
}

func (t *Toolset) searchProduct(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "ERROR: search_product needs a non-empty query.", nil
	}
	products, err := t.erp.SearchProducts(ctx, query, searchLimit)
	if err != nil {
		return erpFailure("product search", err), nil
	}
	if len(products) == 0 {
		return fmt.Sprintf("No products matched %q.", query), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d product(s):\n", len(products))
	for _, p := range products {
		price := "price unknown"
		if p.Prices != nil {
			price = fmt.Sprintf("%.2f %s (VAT %.0f%%)", p.Prices.Unit, p.Prices.Currency, p.Prices.VAT)
		}
		fmt.Fprintf(&b, "- code=%s name=%s uom=%s %s\n", p.InternalID, p.Name, p.UOM, price)
	}
	return b.String(), nil
}

func (t *Toolset) addItem(ctx context.Context, conversationID, ref string, quantity float64) (string, error) {
	if quantity <= 0 {
		return "ERROR: quantity must be greater than zero.", nil
	}
	product, problem, err := t.findProduct(ctx, ref)
	if err != nil {
		return "", err
	}
	if problem != "" {
		return problem, nil
	}

	item := draft.LineItem{
		ProductID: product.ID,
		Code:      product.InternalID,
		Name:      product.Name,
		Quantity:  quantity,
		UOM:       product.UOM,
	}
	if product.Prices != nil {
		item.Currency = product.Prices.Currency
		item.UnitPrice = product.Prices.Unit
		item.VAT = product.Prices.VAT
		item.BasePrice = product.Prices.Unit
	}
	res, err := t.drafts.UpsertItem(ctx, conversationID, item)
	if err != nil {
		return "", err
	}
	if res.Updated {
		return fmt.Sprintf("Updated %s (%s): quantity changed from %g to %g %s.",
			product.Name, product.InternalID, res.PrevQuantity, quantity, product.UOM), nil
	}
	return fmt.Sprintf("Added %g %s of %s (%s) at %.2f %s.",
		quantity, product.UOM, product.Name, product.InternalID, item.UnitPrice, item.Currency), nil
}

func (t *Toolset) removeItem(ctx context.Context, conversationID, code string) (string, error) {
	code = normalizeCode(code)
	removed, found, err := t.drafts.RemoveItem(ctx, conversationID, code)
	if err != nil {
		return "", err
	}
	if !found {
		d, err := t.drafts.GetOrCreate(ctx, conversationID)
		if err != nil {
			return "", err
		}
		codes := make([]string, 0, len(d.Items))
		for _, it := range d.Items {
			codes = append(codes, it.Code)
		}
		if len(codes) == 0 {
			return "The order has no items to remove.", nil
		}
		return fmt.Sprintf("No line with code %q. Current codes: %s.", code, strings.Join(codes, ", ")), nil
	}
	return fmt.Sprintf("Removed %s (%s) from the order.", removed.Name, removed.Code), nil
}

func (t *Toolset) showSummary(ctx context.Context, conversationID string) (string, error) {
	d, err := t.drafts.GetOrCreate(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return d.Summary(), nil
}

func (t *Toolset) clearSession(ctx context.Context, conversationID string) (string, error) {
	if err := t.drafts.Clear(ctx, conversationID); err != nil {
		return "", err
	}
	return "The order draft was cleared. Starting over from customer selection.", nil
}

func (t *Toolset) listWarehouses(ctx context.Context) (string, error) {
	warehouses, err := t.erp.ListWarehouses(ctx)
	if err != nil {
		return erpFailure("warehouse listing", err), nil
	}
	if len(warehouses) == 0 {
		return "No warehouses are configured.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d warehouse(s):\n", len(warehouses))
	for _, w := range warehouses {
		addr := ""
		if w.Address != nil {
			addr = w.Address.Address
		}
		fmt.Fprintf(&b, "- %s (%s) %s\n", w.Name, w.Type, addr)
	}
	return b.String(), nil
}

func (t *Toolset) searchInventory(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "ERROR: search_inventory needs a non-empty query.", nil
	}
	items, err := t.erp.ListInventory(ctx, 500, 0)
	if err != nil {
		return erpFailure("inventory listing", err), nil
	}
	q := strings.ToLower(query)
	var matched []erp.InventoryItem
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.InternalID), q) {
			matched = append(matched, it)
		}
	}
	if len(matched) == 0 {
		return fmt.Sprintf("No stock positions matched %q.", query), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d stock position(s):\n", len(matched))
	for _, it := range matched {
		fmt.Fprintf(&b, "- %s (%s): %g %s in %s\n", it.Name, it.InternalID, it.Quantity, it.UOM, it.Warehouse)
	}
	return b.String(), nil
}
