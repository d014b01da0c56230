package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
)

const noResults = "No results found."

var errToolClosed = errors.New("tool closed")

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

type postgresTool struct {
	cfg     ToolConfig
	nargs   int
	once    sync.Once
	db      *sql.DB
	openErr error
}

func newPostgresTool(cfg ToolConfig) *postgresTool {
	return &postgresTool{cfg: cfg, nargs: placeholderCount(cfg.QueryTemplate)}
}

func (t *postgresTool) Name() string        { return t.cfg.Name }
func (t *postgresTool) Description() string { return t.cfg.Description }

func (t *postgresTool) Call(ctx context.Context, input string) (string, error) {
	t.once.Do(func() {
		t.db, t.openErr = sql.Open("postgres", t.cfg.Conn)
	})
	if t.openErr != nil {
		return "", t.openErr
	}
	if t.db == nil {
		return "", errToolClosed
	}
	args, err := splitArgs(input, t.nargs)
	if err != nil {
		return "", err
	}
	return ExecPostgres(ctx, t.db, t.cfg.QueryTemplate, args...)
}

func (t *postgresTool) Close() error {
	t.once.Do(func() {})
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// ExecPostgres roda a query e formata cada linha como "col=valor ..."
func ExecPostgres(ctx context.Context, db *sql.DB, query string, args ...any) (string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for rows.Next() {
		colsData := make([]any, len(cols))
		colsPtrs := make([]any, len(cols))
		for i := range cols {
			colsPtrs[i] = &colsData[i]
		}
		if err := rows.Scan(colsPtrs...); err != nil {
			return "", err
		}
		for i, c := range cols {
			if i > 0 {
				sb.WriteByte(' ')
			}
			v := colsData[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			fmt.Fprintf(&sb, "%s=%v", c, v)
		}
		sb.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if sb.Len() == 0 {
		return noResults, nil
	}
	return sb.String(), nil
}

func placeholderCount(query string) int {
	max := 0
	for _, m := range placeholderRe.FindAllStringSubmatch(query, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// splitArgs divide a entrada da tool em n argumentos posicionais; o excedente
// fica no último.
func splitArgs(input string, n int) ([]any, error) {
	input = strings.TrimSpace(input)
	switch n {
	case 0:
		return nil, nil
	case 1:
		return []any{input}, nil
	}
	fields := strings.Fields(input)
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(fields))
	}
	out := make([]any, n)
	for i := 0; i < n-1; i++ {
		out[i] = fields[i]
	}
	out[n-1] = strings.Join(fields[n-1:], " ")
	return out, nil
}
