package agent

import (
	"fmt"
	"strings"

	"github.com/filotex/ordermind/pkg/draft"
)

const salesPrompt = `You are a sales order assistant for a food distribution company.
You build orders step by step: first the customer, then the shipping address,
then the items, then a confirmation before submitting.

Rules:
- Trust only the CURRENT ORDER STATE block below. Never invent customers,
  products, prices or quantities; always use the tools to look them up.
- Adding a product that is already in the order overwrites its quantity.
- Before calling submit_order, show the summary and get an explicit yes.
- Answer in the user's language. Keep replies short and concrete.
- If a tool reports an ERP error, tell the user plainly what failed.`

const inventoryPrompt = `You are an inventory assistant for a food distribution company.
Answer questions about warehouses and stock levels using the tools.
Never guess quantities; if the tools return nothing, say so.
Answer in the user's language.`

// buildSystemPrompt assembles the per-turn system message: the persona
// instructions plus the authoritative order state.
func buildSystemPrompt(a *Agent, d *draft.Draft) string {
	var b strings.Builder
	switch a.Category {
	case CategoryInventory:
		b.WriteString(inventoryPrompt)
	default:
		b.WriteString(salesPrompt)
	}
	if a.Category == CategorySales && d != nil {
		b.WriteString("\n\n")
		b.WriteString(d.StateBlock())
		b.WriteString(fmt.Sprintf("\nCurrent step: %s\n", d.Phase))
	}
	return b.String()
}
