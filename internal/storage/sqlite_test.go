package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/filter"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

func TestBuildSQL_Basic(t *testing.T) {
	q := &StorageQuery{
		Entity:  "voter",
		Table:   "voters",
		Columns: []string{"id", "county"},
		Predicate: &filter.Leaf{
			Field: "county", Op: filter.OpEq, Value: "Travis",
		},
		Sort: types.SortSpec{
			{Field: "registered_date", Direction: types.Ascending},
			{Field: "id", Direction: types.Ascending},
		},
		Limit: 3,
	}

	sql, args, err := BuildSQL(q)
	if err != nil {
		t.Fatalf("BuildSQL: %v", err)
	}

	want := `SELECT "id", "county" FROM "voters" WHERE "county" = ? ORDER BY "registered_date" ASC, "id" ASC LIMIT ?`
	if sql != want {
		t.Errorf("sql =\n  %s\nwant\n  %s", sql, want)
	}
	if len(args) != 2 || args[0] != "Travis" || args[1] != 3 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildSQL_Combinators(t *testing.T) {
	q := &StorageQuery{
		Table:   "voters",
		Columns: []string{"id"},
		Predicate: &filter.Combinator{Op: filter.CombineAnd, Children: []filter.Expr{
			&filter.Leaf{Field: "age", Op: filter.OpGte, Value: int64(18)},
			&filter.Combinator{Op: filter.CombineOr, Children: []filter.Expr{
				&filter.Leaf{Field: "county", Op: filter.OpEq, Value: "Travis"},
				&filter.Leaf{Field: "county", Op: filter.OpEq, Value: "Dallas"},
			}},
			&filter.Combinator{Op: filter.CombineNot, Children: []filter.Expr{
				&filter.Leaf{Field: "status", Op: filter.OpEq, Value: "inactive"},
			}},
		}},
		Sort:  types.SortSpec{{Field: "id", Direction: types.Ascending}},
		Limit: 10,
	}

	sql, args, err := BuildSQL(q)
	if err != nil {
		t.Fatalf("BuildSQL: %v", err)
	}

	want := `SELECT "id" FROM "voters" WHERE ("age" >= ? AND ("county" = ? OR "county" = ?) AND NOT ("status" = ?)) ORDER BY "id" ASC LIMIT ?`
	if sql != want {
		t.Errorf("sql =\n  %s\nwant\n  %s", sql, want)
	}
	if len(args) != 5 {
		t.Errorf("args = %v, want 5 values", args)
	}
}

func TestBuildSQL_InAndContains(t *testing.T) {
	q := &StorageQuery{
		Table:   "voters",
		Columns: []string{"id"},
		Predicate: &filter.Combinator{Op: filter.CombineAnd, Children: []filter.Expr{
			&filter.Leaf{Field: "county", Op: filter.OpIn, Values: []any{"Travis", "Dallas"}},
			&filter.Leaf{Field: "name", Op: filter.OpContains, Value: "100%_match"},
		}},
		Sort:  types.SortSpec{{Field: "id", Direction: types.Descending}},
		Limit: 5,
	}

	sql, args, err := BuildSQL(q)
	if err != nil {
		t.Fatalf("BuildSQL: %v", err)
	}

	want := `SELECT "id" FROM "voters" WHERE ("county" IN (?, ?) AND "name" LIKE ? ESCAPE '\') ORDER BY "id" DESC LIMIT ?`
	if sql != want {
		t.Errorf("sql =\n  %s\nwant\n  %s", sql, want)
	}
	// LIKE wildcards in the needle are escaped.
	if args[2] != `%100\%\_match%` {
		t.Errorf("contains pattern = %v", args[2])
	}
}

func TestBuildSQL_QuotesIdentifiers(t *testing.T) {
	q := &StorageQuery{
		Table:   `vo"ters`,
		Columns: []string{`we"ird`},
		Sort:    types.SortSpec{{Field: "id", Direction: types.Ascending}},
	}
	sql, _, err := BuildSQL(q)
	if err != nil {
		t.Fatalf("BuildSQL: %v", err)
	}
	want := `SELECT "we""ird" FROM "vo""ters" ORDER BY "id" ASC`
	if sql != want {
		t.Errorf("sql = %s, want %s", sql, want)
	}
}

func TestBuildSQL_Validation(t *testing.T) {
	if _, _, err := BuildSQL(&StorageQuery{Columns: []string{"id"}}); err == nil {
		t.Error("expected error for missing table")
	}
	if _, _, err := BuildSQL(&StorageQuery{Table: "voters"}); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestSQLiteWarehouse_Execute(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	w := NewSQLiteWarehouseFromDB(db)
	defer w.Close()

	mock.ExpectQuery(`SELECT "id", "county" FROM "voters"`).
		WithArgs("Travis", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "county"}).
			AddRow("v1", "Travis").
			AddRow("v2", []byte("Travis")))

	rows, err := w.Execute(context.Background(), &StorageQuery{
		Entity:    "voter",
		Table:     "voters",
		Columns:   []string{"id", "county"},
		Predicate: &filter.Leaf{Field: "county", Op: filter.OpEq, Value: "Travis"},
		Sort:      types.SortSpec{{Field: "id", Direction: types.Ascending}},
		Limit:     3,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// []byte columns are normalized to string.
	if rows[1]["county"] != "Travis" {
		t.Errorf("county = %v (%T), want string", rows[1]["county"], rows[1]["county"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteWarehouse_ExecuteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	w := NewSQLiteWarehouseFromDB(db)
	defer w.Close()

	mock.ExpectQuery(`SELECT "id" FROM "voters"`).
		WillReturnError(context.DeadlineExceeded)

	_, err = w.Execute(context.Background(), &StorageQuery{
		Table:   "voters",
		Columns: []string{"id"},
		Sort:    types.SortSpec{{Field: "id", Direction: types.Ascending}},
	})
	if err == nil {
		t.Fatal("expected error from failing query")
	}
}
