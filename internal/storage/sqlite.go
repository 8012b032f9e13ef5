package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/filter"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// SQLiteWarehouse executes StorageQueries against a read-only SQLite
// snapshot of the voter warehouse. All values travel through bind
// parameters; identifiers come from the schema registry, never from
// request input.
type SQLiteWarehouse struct {
	db *sql.DB
}

// NewSQLiteWarehouse opens the snapshot database at path read-only.
func NewSQLiteWarehouse(path string) (*SQLiteWarehouse, error) {
	db, err := sql.Open("sqlite3", path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse snapshot: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open warehouse snapshot %s: %w", path, err)
	}
	return &SQLiteWarehouse{db: db}, nil
}

// NewSQLiteWarehouseFromDB wraps an existing handle (used by tests).
func NewSQLiteWarehouseFromDB(db *sql.DB) *SQLiteWarehouse {
	return &SQLiteWarehouse{db: db}
}

// Execute translates the query into parameterized SQL and runs it.
func (w *SQLiteWarehouse) Execute(ctx context.Context, q *StorageQuery) ([]types.Row, error) {
	query, args, err := BuildSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var out []types.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		row := make(types.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Close releases the database handle.
func (w *SQLiteWarehouse) Close() error {
	return w.db.Close()
}

// normalizeValue maps driver values onto the engine's value kinds.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

// BuildSQL renders a StorageQuery as a parameterized SELECT.
func BuildSQL(q *StorageQuery) (string, []any, error) {
	if q.Table == "" {
		return "", nil, fmt.Errorf("storage query has no table")
	}
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("storage query has no columns")
	}

	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	for i, col := range q.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(col))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(q.Table))

	if q.Predicate != nil {
		where, whereArgs, err := predicateSQL(q.Predicate)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		args = append(args, whereArgs...)
	}

	if len(q.Sort) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, s := range q.Sort {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(s.Field))
			if s.Direction == types.Descending {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	return sb.String(), args, nil
}

// predicateSQL renders a predicate tree as a SQL condition with bind
// parameters.
func predicateSQL(expr filter.Expr) (string, []any, error) {
	switch e := expr.(type) {
	case *filter.Leaf:
		return leafSQL(e)

	case *filter.Combinator:
		if e.Op == filter.CombineNot {
			if len(e.Children) != 1 {
				return "", nil, fmt.Errorf("not combinator must have one child")
			}
			inner, args, err := predicateSQL(e.Children[0])
			if err != nil {
				return "", nil, err
			}
			return "NOT (" + inner + ")", args, nil
		}

		joiner := " AND "
		if e.Op == filter.CombineOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(e.Children))
		var args []any
		for _, ch := range e.Children {
			part, childArgs, err := predicateSQL(ch)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, part)
			args = append(args, childArgs...)
		}
		return "(" + strings.Join(parts, joiner) + ")", args, nil

	default:
		return "", nil, fmt.Errorf("unknown predicate node %T", expr)
	}
}

func leafSQL(leaf *filter.Leaf) (string, []any, error) {
	col := quoteIdent(leaf.Field)

	switch leaf.Op {
	case filter.OpEq:
		return col + " = ?", []any{leaf.Value}, nil
	case filter.OpNe:
		return col + " <> ?", []any{leaf.Value}, nil
	case filter.OpLt:
		return col + " < ?", []any{leaf.Value}, nil
	case filter.OpLte:
		return col + " <= ?", []any{leaf.Value}, nil
	case filter.OpGt:
		return col + " > ?", []any{leaf.Value}, nil
	case filter.OpGte:
		return col + " >= ?", []any{leaf.Value}, nil
	case filter.OpIn:
		if len(leaf.Values) == 0 {
			return "", nil, fmt.Errorf("in predicate has no values")
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(leaf.Values)), ", ")
		return col + " IN (" + placeholders + ")", leaf.Values, nil
	case filter.OpContains:
		s, ok := leaf.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("contains predicate requires a string value")
		}
		return col + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(s) + "%"}, nil
	default:
		return "", nil, fmt.Errorf("unknown operator %q", leaf.Op)
	}
}

// quoteIdent quotes an identifier for SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// escapeLike escapes LIKE wildcards in a literal substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
