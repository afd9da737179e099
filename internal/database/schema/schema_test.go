package schema

import (
	"context"
	"strings"
	"testing"

	"review-pulse/internal/database"
)

// fakeDB answers the information_schema column probe from a canned
// catalog and accepts every DDL statement.
type fakeDB struct {
	columns map[string][]string
	execs   []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{columns: map[string][]string{}}
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close() error               { return nil }

func (f *fakeDB) Exec(_ context.Context, query string, _ ...any) (int64, error) {
	f.execs = append(f.execs, query)
	return 0, nil
}

func (f *fakeDB) Query(_ context.Context, query string, args ...any) (database.Rows, error) {
	if strings.Contains(query, "information_schema.columns") {
		table, _ := args[0].(string)
		return &columnRows{names: f.columns[table]}, nil
	}
	return &columnRows{}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) database.Row { return nil }
func (f *fakeDB) Begin(context.Context) (database.Tx, error)            { return nil, nil }

type columnRows struct {
	names []string
	pos   int
}

func (r *columnRows) Close()     {}
func (r *columnRows) Err() error { return nil }

func (r *columnRows) Next() bool {
	if r.pos >= len(r.names) {
		return false
	}
	r.pos++
	return true
}

func (r *columnRows) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.names[r.pos-1]
	return nil
}

func fullCatalog() map[string][]string {
	out := make(map[string][]string, len(criticalColumns))
	for table, cols := range criticalColumns {
		out[table] = append([]string(nil), cols...)
	}
	return out
}

func TestEnsure_RunsDDLAndPassesOnCompleteCatalog(t *testing.T) {
	db := newFakeDB()
	db.columns = fullCatalog()

	if err := Ensure(context.Background(), db, nil); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if len(db.execs) < len(ddl) {
		t.Fatalf("executed %d statements, want at least %d", len(db.execs), len(ddl))
	}
}

func TestEnsure_FailsOnMissingCriticalColumn(t *testing.T) {
	db := newFakeDB()
	db.columns = fullCatalog()
	// Drop one column the review repository scans.
	cols := db.columns["reviews"]
	trimmed := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "external_review_id" {
			trimmed = append(trimmed, c)
		}
	}
	db.columns["reviews"] = trimmed

	err := Ensure(context.Background(), db, nil)
	if err == nil {
		t.Fatal("Ensure passed against a drifted reviews table")
	}
	if !strings.Contains(err.Error(), "reviews.external_review_id") {
		t.Fatalf("err = %v, want it to name the missing column", err)
	}
}

func TestEnsureTableColumns_RejectsBadInput(t *testing.T) {
	if err := EnsureTableColumns(context.Background(), nil, "locations", "id"); err == nil {
		t.Fatal("nil db accepted")
	}
	if err := EnsureTableColumns(context.Background(), newFakeDB(), "", "id"); err == nil {
		t.Fatal("empty table accepted")
	}
}
