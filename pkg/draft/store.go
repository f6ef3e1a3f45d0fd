// Package draft holds the durable, conversation-scoped state of an
// in-progress sales order. The store is the only source of truth for that
// state: every mutation is an independent read-modify-write against the
// database, and nothing the planner merely claims is ever written here.
package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/filotex/ordermind/pkg/database"
	"github.com/filotex/ordermind/pkg/erp"
)

// Phase is the declared current step of the order wizard. It is advanced by
// specific mutations and rendered back to the planner each turn; it is not a
// hard gate.
type Phase string

const (
	PhaseCustomer Phase = "CUSTOMER"
	PhaseAddress  Phase = "ADDRESS"
	PhaseItems    Phase = "ITEMS"
	PhaseConfirm  Phase = "CONFIRM"
)

// CustomerSnapshot is the normalized customer stored in the draft. It is set
// only from a fresh ERP fetch, never from planner-asserted fields.
type CustomerSnapshot struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Address         string        `json:"address"`
	Country         string        `json:"country"`
	VAT             string        `json:"vat"`
	DefaultCurrency string        `json:"default_currency"`
	Addresses       []erp.Address `json:"addresses"`
}

// LineItem is one product line of the draft. Code is unique within a draft;
// adding an existing code overwrites quantity and pricing.
type LineItem struct {
	ProductID       string  `json:"product_id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Quantity        float64 `json:"quantity"`
	UOM             string  `json:"uom"`
	Currency        string  `json:"currency"`
	UnitPrice       float64 `json:"unit_price"`
	VAT             float64 `json:"vat"`
	BasePrice       float64 `json:"base_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Draft is the in-progress order for one conversation.
type Draft struct {
	ConversationID  string            `json:"conversation_id"`
	Phase           Phase             `json:"phase"`
	Customer        *CustomerSnapshot `json:"customer,omitempty"`
	Items           []LineItem        `json:"items"`
	ShippingAddress string            `json:"shipping_address,omitempty"`
	ShippingTime    string            `json:"shipping_time,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

// Total is the VAT-exclusive sum over all lines.
func (d *Draft) Total() float64 {
	var total float64
	for _, it := range d.Items {
		total += it.UnitPrice * it.Quantity
	}
	return total
}

// FindItem returns the line matching code case-insensitively.
func (d *Draft) FindItem(code string) (int, *LineItem) {
	for i := range d.Items {
		if strings.EqualFold(d.Items[i].Code, code) {
			return i, &d.Items[i]
		}
	}
	return -1, nil
}

// Store persists drafts, one row per conversation. A per-conversation mutex
// serializes read-modify-write cycles so overlapping requests for the same
// conversation cannot lose updates.
type Store struct {
	db *database.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the store and runs its migration.
func NewStore(db *database.DB) (*Store, error) {
	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	q := `CREATE TABLE IF NOT EXISTS order_drafts (
		conversation_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		customer_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		customer_json TEXT NOT NULL DEFAULT '',
		items_json TEXT NOT NULL DEFAULT '[]',
		shipping_address TEXT NOT NULL DEFAULT '',
		shipping_time TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(context.Background(), q); err != nil {
		return fmt.Errorf("draft: migrate: %w", err)
	}
	return nil
}

func (s *Store) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	return l
}

// GetOrCreate loads the draft for a conversation, creating an empty one on
// first access.
func (s *Store) GetOrCreate(ctx context.Context, conversationID string) (*Draft, error) {
	d, err := s.load(ctx, conversationID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	d = &Draft{ConversationID: conversationID, Phase: PhaseCustomer, Items: []LineItem{}}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO order_drafts (conversation_id, phase, items_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conversationID, string(d.Phase), "[]", now, now)
	if err != nil {
		// A concurrent first access may have inserted already.
		if existing, loadErr := s.load(ctx, conversationID); loadErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("draft: create: %w", err)
	}
	return d, nil
}

func (s *Store) load(ctx context.Context, conversationID string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phase, customer_json, items_json, shipping_address, shipping_time, notes
		 FROM order_drafts WHERE conversation_id = ?`, conversationID)

	var phase, customerJSON, itemsJSON string
	d := &Draft{ConversationID: conversationID}
	if err := row.Scan(&phase, &customerJSON, &itemsJSON, &d.ShippingAddress, &d.ShippingTime, &d.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("draft: load: %w", err)
	}
	d.Phase = Phase(phase)
	if customerJSON != "" {
		var c CustomerSnapshot
		if err := json.Unmarshal([]byte(customerJSON), &c); err != nil {
			return nil, fmt.Errorf("draft: decode customer: %w", err)
		}
		d.Customer = &c
	}
	if err := json.Unmarshal([]byte(itemsJSON), &d.Items); err != nil {
		return nil, fmt.Errorf("draft: decode items: %w", err)
	}
	if d.Items == nil {
		d.Items = []LineItem{}
	}
	return d, nil
}

func (s *Store) save(ctx context.Context, d *Draft) error {
	customerJSON := ""
	if d.Customer != nil {
		raw, err := json.Marshal(d.Customer)
		if err != nil {
			return fmt.Errorf("draft: encode customer: %w", err)
		}
		customerJSON = string(raw)
	}
	itemsRaw, err := json.Marshal(d.Items)
	if err != nil {
		return fmt.Errorf("draft: encode items: %w", err)
	}

	customerID, customerName := "", ""
	if d.Customer != nil {
		customerID, customerName = d.Customer.ID, d.Customer.Name
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE order_drafts
		 SET phase = ?, customer_id = ?, customer_name = ?, customer_json = ?, items_json = ?,
		     shipping_address = ?, shipping_time = ?, notes = ?, updated_at = ?
		 WHERE conversation_id = ?`,
		string(d.Phase), customerID, customerName, customerJSON, string(itemsRaw),
		d.ShippingAddress, d.ShippingTime, d.Notes,
		time.Now().UTC().Format(time.RFC3339Nano), d.ConversationID)
	if err != nil {
		return fmt.Errorf("draft: save: %w", err)
	}
	return nil
}

// mutate runs one serialized read-modify-write cycle.
func (s *Store) mutate(ctx context.Context, conversationID string, fn func(*Draft) error) (*Draft, error) {
	l := s.lockFor(conversationID)
	l.Lock()
	defer l.Unlock()

	d, err := s.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetPhase records the declared wizard step.
func (s *Store) SetPhase(ctx context.Context, conversationID string, phase Phase) error {
	_, err := s.mutate(ctx, conversationID, func(d *Draft) error {
		d.Phase = phase
		return nil
	})
	return err
}

// SetCustomer replaces the customer snapshot entirely with values from a
// fresh ERP record and advances the phase to ADDRESS.
func (s *Store) SetCustomer(ctx context.Context, conversationID string, c *erp.Customer) (*Draft, error) {
	return s.mutate(ctx, conversationID, func(d *Draft) error {
		snap := &CustomerSnapshot{
			ID:              c.ID,
			Name:            c.Name,
			VAT:             c.VATNo,
			DefaultCurrency: c.DefaultCurrency,
			Addresses:       c.Addresses,
		}
		if snap.VAT == "" {
			snap.VAT = "n/a"
		}
		if snap.DefaultCurrency == "" {
			snap.DefaultCurrency = "EUR"
		}
		if len(c.Addresses) > 0 {
			snap.Address = c.Addresses[0].Address
			snap.Country = c.Addresses[0].Country
		}
		d.Customer = snap
		d.Phase = PhaseAddress
		return nil
	})
}

// SetShippingAddress stores the literal address text and advances the phase
// to ITEMS.
func (s *Store) SetShippingAddress(ctx context.Context, conversationID, address string) error {
	_, err := s.mutate(ctx, conversationID, func(d *Draft) error {
		d.ShippingAddress = address
		d.Phase = PhaseItems
		return nil
	})
	return err
}

// SetShippingTime stores a normalized ISO timestamp.
func (s *Store) SetShippingTime(ctx context.Context, conversationID, iso string) error {
	_, err := s.mutate(ctx, conversationID, func(d *Draft) error {
		d.ShippingTime = iso
		return nil
	})
	return err
}

// SetNotes stores free-form order notes.
func (s *Store) SetNotes(ctx context.Context, conversationID, notes string) error {
	_, err := s.mutate(ctx, conversationID, func(d *Draft) error {
		d.Notes = notes
		return nil
	})
	return err
}

// UpsertResult reports what an UpsertItem call did.
type UpsertResult struct {
	Updated      bool
	PrevQuantity float64
}

// UpsertItem inserts a line or, when the code already exists
// (case-insensitively), overwrites its quantity and pricing. Quantities never
// accumulate.
func (s *Store) UpsertItem(ctx context.Context, conversationID string, item LineItem) (*UpsertResult, error) {
	res := &UpsertResult{}
	_, err := s.mutate(ctx, conversationID, func(d *Draft) error {
		if i, existing := d.FindItem(item.Code); i >= 0 {
			res.Updated = true
			res.PrevQuantity = existing.Quantity
			d.Items[i] = item
			return nil
		}
		d.Items = append(d.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RemoveItem deletes the line matching code case-insensitively. The removed
// line is returned for reporting; found is false when no line matched.
func (s *Store) RemoveItem(ctx context.Context, conversationID, code string) (removed *LineItem, found bool, err error) {
	_, err = s.mutate(ctx, conversationID, func(d *Draft) error {
		i, existing := d.FindItem(code)
		if i < 0 {
			return nil
		}
		cp := *existing
		removed = &cp
		found = true
		d.Items = append(d.Items[:i], d.Items[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return removed, found, nil
}

// Clear deletes the draft row. The next access starts an empty order.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	l := s.lockFor(conversationID)
	l.Lock()
	defer l.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM order_drafts WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("draft: clear: %w", err)
	}
	return nil
}
