package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/todoagent/pkg/errorsx"
	"modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// foldFunc lower-cases with Unicode rules. SQLite's own LIKE and lower()
// only fold ASCII letters.
const foldFunc = "todo_fold"

var (
	registerFold    sync.Once
	registerFoldErr error
)

func registerFoldFunc() error {
	registerFold.Do(func() {
		registerFoldErr = sqlite.RegisterDeterministicScalarFunction(foldFunc, 1,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case string:
					return strings.ToLower(v), nil
				case []byte:
					return strings.ToLower(string(v)), nil
				default:
					return v, nil
				}
			})
	})
	return registerFoldErr
}

// SQLiteStore keeps todos in a SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema.
// An empty path or ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: create dir")
			}
		}
	}

	if err := registerFoldFunc(); err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: register %s", foldFunc)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: open %s", path)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: create schema")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) SelectAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at, updated_at FROM todos ORDER BY id`)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: select all")
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) Insert(ctx context.Context, text string) (int64, error) {
	ts := formatTime(s.now())
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO todos (text, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
		text, ts, ts).Scan(&id)
	if err != nil {
		return 0, errorsx.Wrapf(err, errorsx.ReasonStore, "store: insert")
	}
	return id, nil
}

func (s *SQLiteStore) SelectWhere(ctx context.Context, pattern string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at, updated_at FROM todos
		 WHERE instr(`+foldFunc+`(text), `+foldFunc+`(?)) > 0 ORDER BY id`,
		pattern)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: search")
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) DeleteWhere(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
		return errorsx.Wrapf(err, errorsx.ReasonStore, "store: delete %d", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var (
			rec              Record
			created, updated string
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &created, &updated); err != nil {
			return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: scan")
		}
		rec.CreatedAt = parseTime(created)
		rec.UpdatedAt = parseTime(updated)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errorsx.Wrapf(err, errorsx.ReasonStore, "store: rows")
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ Store = (*SQLiteStore)(nil)
