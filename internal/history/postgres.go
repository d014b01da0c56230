package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const DefaultTable = "message_store"

type Config struct {
	DSN   string
	Table string
}

type PostgresStore struct {
	db    *sql.DB
	table string
}

// OpenPostgres conecta, valida a conexão e cria a tabela se necessário
func OpenPostgres(ctx context.Context, cfg Config) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db, cfg.Table)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, table: pq.QuoteIdentifier(table)}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			message JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		);`, s.table)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s (session_id)`,
		pq.QuoteIdentifier(unquote(s.table)+"_session_idx"), s.table))
	return err
}

func (s *PostgresStore) ForSession(sessionID string) ChatHistory {
	return &postgresHistory{store: s, sessionID: sessionID}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type postgresHistory struct {
	store     *PostgresStore
	sessionID string
}

func (h *postgresHistory) AddUserMessage(ctx context.Context, text string) error {
	return h.add(ctx, Message{Type: TypeHuman, Content: text})
}

func (h *postgresHistory) AddAIMessage(ctx context.Context, text string) error {
	return h.add(ctx, Message{Type: TypeAI, Content: text})
}

func (h *postgresHistory) add(ctx context.Context, m Message) error {
	js, err := encodeMessage(m)
	if err != nil {
		return err
	}
	_, err = h.store.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (session_id, message) VALUES ($1, $2::jsonb)`, h.store.table),
		h.sessionID, js,
	)
	if err != nil {
		return fmt.Errorf("insert history message: %w", err)
	}
	return nil
}

func (h *postgresHistory) Messages(ctx context.Context) ([]Message, error) {
	rows, err := h.store.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT message FROM %s WHERE session_id = $1 ORDER BY id`, h.store.table),
		h.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		m, err := decodeMessage(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (h *postgresHistory) Clear(ctx context.Context) error {
	_, err := h.store.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, h.store.table),
		h.sessionID,
	)
	return err
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}
