// Package agent implements the conversational order assistants: the tool
// registry the planner is allowed to call, the handlers that execute those
// calls against the draft store and the ERP, and the per-turn dispatch loop.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/filotex/ordermind/pkg/planner"
)

// Agent categories select which toolset and model a conversation runs with.
const (
	CategorySales     = "sales"
	CategoryInventory = "inventory"
)

// Agent is a configured assistant persona.
type Agent struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Model          string `json:"model"`
	Description    string `json:"description"`
	WelcomeMessage string `json:"welcome_message"`
}

// Registry holds the seeded agents and the compiled tool schemas. Tool
// arguments are validated against their declared schema before any handler
// runs; a call that fails validation never reaches the ERP.
type Registry struct {
	agents  map[string]*Agent
	tools   map[string][]planner.ToolDefinition
	schemas map[string]*jsonschema.Schema
}

// NewRegistry seeds the default agents and compiles every tool schema.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		agents:  make(map[string]*Agent),
		tools:   make(map[string][]planner.ToolDefinition),
		schemas: make(map[string]*jsonschema.Schema),
	}

	r.agents["sales-order"] = &Agent{
		ID:             "sales-order",
		Name:           "Sales Order Assistant",
		Category:       CategorySales,
		Model:          "gpt-4o-mini",
		Description:    "Builds and submits sales orders step by step.",
		WelcomeMessage: "Hi! I can help you place a sales order. Which customer is it for?",
	}
	r.agents["inventory"] = &Agent{
		ID:             "inventory",
		Name:           "Inventory Assistant",
		Category:       CategoryInventory,
		Model:          "gpt-4o",
		Description:    "Answers stock and warehouse questions.",
		WelcomeMessage: "Hello! Ask me about warehouses or current stock levels.",
	}

	r.tools[CategorySales] = salesTools()
	r.tools[CategoryInventory] = inventoryTools()

	for _, defs := range r.tools {
		for _, def := range defs {
			if _, ok := r.schemas[def.Name]; ok {
				continue
			}
			compiled, err := compileSchema(def.Name, def.Parameters)
			if err != nil {
				return nil, err
			}
			r.schemas[def.Name] = compiled
		}
	}
	return r, nil
}

// Agents lists all seeded agents.
func (r *Registry) Agents() []*Agent {
	out := make([]*Agent, 0, len(r.agents))
	for _, id := range []string{"sales-order", "inventory"} {
		if a, ok := r.agents[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Agent returns the agent by id.
func (r *Registry) Agent(id string) (*Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// Tools returns the toolset for a category.
func (r *Registry) Tools(category string) []planner.ToolDefinition {
	return r.tools[category]
}

// ValidateArgs checks raw planner arguments against the tool's schema.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) (map[string]any, error) {
	schema, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("agent: unknown tool %q", name)
	}
	raw := args
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("agent: tool %q arguments are not an object: %w", name, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("agent: tool %q arguments rejected: %w", name, err)
	}
	return parsed, nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("agent: encode schema for %q: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://ordermind.schemas.local/tools/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("agent: load schema for %q: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("agent: compile schema for %q: %w", name, err)
	}
	return compiled, nil
}

func objectSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func salesTools() []planner.ToolDefinition {
	return []planner.ToolDefinition{
		{
			Name:        "search_customer",
			Description: "Search customers by name. Returns matching customers with their ids.",
			Parameters: objectSchema([]string{"query"}, map[string]any{
				"query": map[string]any{"type": "string", "description": "Customer name or fragment."},
			}),
		},
		{
			Name:        "draft_set_customer",
			Description: "Select the order customer by id. Fetches the customer record and stores it in the draft.",
			Parameters: objectSchema([]string{"customer_id"}, map[string]any{
				"customer_id": map[string]any{"type": "string", "description": "Customer id from search_customer."},
			}),
		},
		{
			Name:        "set_shipping_address",
			Description: "Set the shipping address for the order. Pass the address text exactly as the user stated it.",
			Parameters: objectSchema([]string{"address"}, map[string]any{
				"address": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "set_shipping_date",
			Description: "Set the requested shipping date. Accepts natural language like 'tra 2 settimane' or 'next week' or a date.",
			Parameters: objectSchema([]string{"date"}, map[string]any{
				"date": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "search_product",
			Description: "Search the product catalog by name or code.",
			Parameters: objectSchema([]string{"query"}, map[string]any{
				"query": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "draft_add_item",
			Description: "Add a product line to the order, or overwrite the quantity if the product is already in it. Pass a product name, code or id.",
			Parameters: objectSchema([]string{"product", "quantity"}, map[string]any{
				"product":  map[string]any{"type": "string"},
				"quantity": map[string]any{"type": "number", "exclusiveMinimum": 0},
			}),
		},
		{
			Name:        "draft_remove_item",
			Description: "Remove a product line from the order by its code.",
			Parameters: objectSchema([]string{"code"}, map[string]any{
				"code": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "set_order_notes",
			Description: "Attach free-form notes to the order.",
			Parameters: objectSchema([]string{"notes"}, map[string]any{
				"notes": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "draft_show_summary",
			Description: "Show the current order summary with line totals.",
			Parameters:  objectSchema(nil, map[string]any{}),
		},
		{
			Name:        "clear_session",
			Description: "Discard the current order draft and start over.",
			Parameters:  objectSchema(nil, map[string]any{}),
		},
		{
			Name:        "submit_order",
			Description: "Submit the completed order to the ERP. Only call after the user confirms the summary.",
			Parameters:  objectSchema(nil, map[string]any{}),
		},
	}
}

func inventoryTools() []planner.ToolDefinition {
	return []planner.ToolDefinition{
		{
			Name:        "list_warehouses",
			Description: "List the company warehouses.",
			Parameters:  objectSchema(nil, map[string]any{}),
		},
		{
			Name:        "search_inventory",
			Description: "Search current stock levels by product name or code.",
			Parameters: objectSchema([]string{"query"}, map[string]any{
				"query": map[string]any{"type": "string"},
			}),
		},
	}
}
