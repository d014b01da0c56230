package history

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, ""), mock
}

func TestMigrateCreatesTableAndIndex(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "message_store"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "message_store_session_idx" ON "message_store" (session_id)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMessagesEncodesJSON(t *testing.T) {
	s, mock := newMockStore(t)
	h := s.ForSession("s1")

	insert := regexp.QuoteMeta(`INSERT INTO "message_store" (session_id, message) VALUES ($1, $2::jsonb)`)
	mock.ExpectExec(insert).
		WithArgs("s1", `{"type":"human","data":{"content":"hi"}}`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).
		WithArgs("s1", `{"type":"ai","data":{"content":"hello"}}`).
		WillReturnResult(sqlmock.NewResult(2, 1))

	ctx := context.Background()
	require.NoError(t, h.AddUserMessage(ctx, "hi"))
	require.NoError(t, h.AddAIMessage(ctx, "hello"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesDecodesRowsInOrder(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"message"}).
		AddRow([]byte(`{"type":"human","data":{"content":"hi"}}`)).
		AddRow([]byte(`{"type":"ai","data":{"content":"hello","additional_kwargs":{}}}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT message FROM "message_store" WHERE session_id = $1 ORDER BY id`)).
		WithArgs("s1").
		WillReturnRows(rows)

	msgs, err := s.ForSession("s1").Messages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Type: TypeHuman, Content: "hi"},
		{Type: TypeAI, Content: "hello"},
	}, msgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesRejectsCorruptRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT message").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"message"}).AddRow([]byte(`not json`)))

	_, err := s.ForSession("s1").Messages(context.Background())
	assert.Error(t, err)
}

func TestClearDeletesSession(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "message_store" WHERE session_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.ForSession("s1").Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
