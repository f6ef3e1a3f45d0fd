package chat

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/filotex/ordermind/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func TestStore_ConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "New order", "agent-sales")
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	got, err := s.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "New order", got.Title)
	require.Equal(t, "agent-sales", got.AgentID)

	require.NoError(t, s.RenameConversation(ctx, c.ID, "ACME order"))
	got, err = s.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "ACME order", got.Title)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteConversation(ctx, c.ID))
	_, err = s.GetConversation(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RenameMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.RenameConversation(context.Background(), "missing", "x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MessagesOrderedAndWindowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "t", "")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := s.AppendMessage(ctx, c.ID, RoleUser, content)
		require.NoError(t, err)
	}

	all, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "one", all[0].Content)
	require.Equal(t, "four", all[3].Content)

	recent, err := s.RecentMessages(ctx, c.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "three", recent[0].Content)
	require.Equal(t, "four", recent[1].Content)
}

func TestStore_DeleteCascadesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "t", "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, c.ID, RoleUser, "hello")
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, c.ID))
	msgs, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestStore_InsertFailureSurfaces(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	mock.ExpectExec("INSERT INTO messages").WillReturnError(sql.ErrConnDone)

	s := &Store{db: database.NewForTest(raw, "sqlite")}
	_, err = s.AppendMessage(context.Background(), "c-1", RoleUser, "hi")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
