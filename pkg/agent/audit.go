package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/filotex/ordermind/pkg/database"
)

// Audit records every executed tool call durably, alongside the structured
// log line. The table is append-only.
type Audit struct {
	db *database.DB
}

// Invocation is one recorded tool call.
type Invocation struct {
	ID             string
	ConversationID string
	Tool           string
	Arguments      string
	Result         string
	OK             bool
	Duration       time.Duration
	CreatedAt      time.Time
}

func NewAudit(db *database.DB) (*Audit, error) {
	a := &Audit{db: db}
	q := `CREATE TABLE IF NOT EXISTS tool_invocations (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		arguments TEXT NOT NULL,
		result TEXT NOT NULL,
		ok INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`
	if _, err := a.db.ExecContext(context.Background(), q); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	if _, err := a.db.ExecContext(context.Background(),
		`CREATE INDEX IF NOT EXISTS idx_tool_invocations_conv ON tool_invocations (conversation_id, created_at)`); err != nil {
		return nil, fmt.Errorf("audit: migrate index: %w", err)
	}
	return a, nil
}

// Record stores one invocation.
func (a *Audit) Record(ctx context.Context, inv Invocation) error {
	okInt := 0
	if inv.OK {
		okInt = 1
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO tool_invocations (id, conversation_id, tool, arguments, result, ok, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), inv.ConversationID, inv.Tool, inv.Arguments, inv.Result,
		okInt, inv.Duration.Milliseconds(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// ForConversation returns the recorded calls for one conversation, oldest
// first.
func (a *Audit) ForConversation(ctx context.Context, conversationID string) ([]Invocation, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, conversation_id, tool, arguments, result, ok, duration_ms, created_at
		 FROM tool_invocations WHERE conversation_id = ? ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var okInt, durationMS int64
		var created string
		if err := rows.Scan(&inv.ID, &inv.ConversationID, &inv.Tool, &inv.Arguments,
			&inv.Result, &okInt, &durationMS, &created); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		inv.OK = okInt == 1
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		inv.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, inv)
	}
	return out, rows.Err()
}
