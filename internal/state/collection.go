package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// queryer is satisfied by *sql.Tx; every collection call runs inside the
// caller's transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// collection stores records of type T as JSON documents in one table. The
// primary key lives in the "key" column; each secondary index is a
// materialised column filled from the record on every write.
type collection[T any] struct {
	name    string
	key     func(*T) string
	indexes []string
	values  func(*T) []any // one value per entry in indexes, same order
}

func (c *collection[T]) columns() []string {
	return append([]string{"key", "data"}, c.indexes...)
}

func (c *collection[T]) row(v *T) ([]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", c.name, err)
	}
	args := []any{c.key(v), string(data)}
	return append(args, c.values(v)...), nil
}

func (c *collection[T]) insertSQL() string {
	cols := c.columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c.name, strings.Join(cols, ", "), marks)
}

// add inserts v and fails with ErrDuplicateKey if the key is taken.
func (c *collection[T]) add(ctx context.Context, q queryer, v *T) error {
	args, err := c.row(v)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, c.insertSQL(), args...); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%s key %q: %w", c.name, c.key(v), ErrDuplicateKey)
		}
		return classify(c.name, "add", err)
	}
	return nil
}

// put inserts or replaces v. The row keeps its rowid on update, so scan
// order stays insertion order.
func (c *collection[T]) put(ctx context.Context, q queryer, v *T) error {
	args, err := c.row(v)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(c.indexes)+1)
	for _, col := range append([]string{"data"}, c.indexes...) {
		sets = append(sets, col+" = excluded."+col)
	}
	stmt := c.insertSQL() + " ON CONFLICT(key) DO UPDATE SET " + strings.Join(sets, ", ")
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return classify(c.name, "put", err)
	}
	return nil
}

// get returns the record stored under key, or (nil, nil) if there is none.
func (c *collection[T]) get(ctx context.Context, q queryer, key string) (*T, error) {
	var data string
	err := q.QueryRowContext(ctx, "SELECT data FROM "+c.name+" WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // "not found" sentinel
	}
	if err != nil {
		return nil, classify(c.name, "get", err)
	}
	return c.decode(data)
}

// all returns every record in insertion order.
func (c *collection[T]) all(ctx context.Context, q queryer) ([]*T, error) {
	return c.query(ctx, q, "SELECT data FROM "+c.name+" ORDER BY rowid")
}

// where returns the records whose index column equals value.
func (c *collection[T]) where(ctx context.Context, q queryer, index string, value any) ([]*T, error) {
	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	return c.query(ctx, q, "SELECT data FROM "+c.name+" WHERE "+index+" = ? ORDER BY rowid", value)
}

func (c *collection[T]) delete(ctx context.Context, q queryer, key string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+c.name+" WHERE key = ?", key); err != nil {
		return classify(c.name, "delete", err)
	}
	return nil
}

// clear removes every record, or only those whose index column equals value
// when index is not empty.
func (c *collection[T]) clear(ctx context.Context, q queryer, index string, value any) (int, error) {
	stmt := "DELETE FROM " + c.name
	var args []any
	if index != "" {
		if err := c.checkIndex(index); err != nil {
			return 0, err
		}
		stmt += " WHERE " + index + " = ?"
		args = append(args, value)
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, classify(c.name, "clear", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (c *collection[T]) count(ctx context.Context, q queryer) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.name).Scan(&n); err != nil {
		return 0, classify(c.name, "count", err)
	}
	return n, nil
}

func (c *collection[T]) query(ctx context.Context, q queryer, stmt string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(c.name, "query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, classify(c.name, "scan", err)
		}
		v, err := c.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(c.name, "query", err)
	}
	return out, nil
}

func (c *collection[T]) decode(data string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", c.name, err)
	}
	return &v, nil
}

func (c *collection[T]) checkIndex(index string) error {
	if !slices.Contains(c.indexes, index) {
		return fmt.Errorf("collection %s has no index %q", c.name, index)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}
