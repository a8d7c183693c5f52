package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/db/sqlite"
	"github.com/kailas-cloud/clinicrag/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE Services_Arabic (service_name TEXT, price INTEGER, note TEXT)`,
		`CREATE TABLE Services_English (service_name TEXT, price INTEGER, note TEXT)`,
		`CREATE TABLE SocialMedia_English (platform_name TEXT, link TEXT)`,
		`INSERT INTO Services_Arabic VALUES ('تنظيف الأسنان', 40, NULL)`,
		`INSERT INTO Services_English VALUES ('Teeth Cleaning', 40, 'x'), ('Root Canal', 120, 'y')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return db
}

func TestLoad_ConcatenatesTablesInOrder(t *testing.T) {
	repo, err := New(newTestDB(t), []Source{
		{Category: "services", Tables: []string{"Services_Arabic", "Services_English"}, Columns: []string{"service_name", "price"}},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := got["services"]
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if name := c.Record(0)["service_name"]; name != "تنظيف الأسنان" {
		t.Errorf("first record = %v, want Arabic row", name)
	}
	if price := c.Record(2)["price"]; price != int64(120) {
		t.Errorf("price = %#v, want int64(120)", price)
	}
	if fields := c.Fields(); len(fields) != 2 {
		t.Errorf("fields = %v, want only configured columns", fields)
	}
}

func TestLoad_EmptyTable(t *testing.T) {
	repo, err := New(newTestDB(t), []Source{
		{Category: "social_media", Tables: []string{"SocialMedia_English"}, Columns: []string{"platform_name", "link"}},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c := got["social_media"]; c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestLoad_MissingTable(t *testing.T) {
	repo, err := New(newTestDB(t), []Source{
		{Category: "branches", Tables: []string{"Branches_Arabic"}, Columns: []string{"branch_name"}},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := repo.Load(context.Background()); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestLoad_MissingColumn(t *testing.T) {
	repo, err := New(newTestDB(t), []Source{
		{Category: "services", Tables: []string{"Services_English"}, Columns: []string{"service_name", "duration"}},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := repo.Load(context.Background()); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestLoad_CancelledIsNotSchemaError(t *testing.T) {
	repo, err := New(newTestDB(t), []Source{
		{Category: "services", Tables: []string{"Services_English"}, Columns: []string{"service_name"}},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.Load(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrSchema) {
		t.Errorf("a cancelled load must not be reported as a schema error: %v", err)
	}
}

func TestNew_RejectsInvalidIdentifiers(t *testing.T) {
	tests := []Source{
		{Category: "a", Tables: []string{"x; DROP TABLE y"}, Columns: []string{"c"}},
		{Category: "a", Tables: []string{"t"}, Columns: []string{`c"`}},
		{Category: "a", Tables: nil, Columns: []string{"c"}},
		{Category: "a", Tables: []string{"t"}},
	}
	for _, src := range tests {
		if _, err := New(nil, []Source{src}, zap.NewNop()); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("New(%+v): expected ErrConfiguration, got %v", src, err)
		}
	}
}
