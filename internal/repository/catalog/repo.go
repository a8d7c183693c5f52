package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/db/sqlite"
	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// store is the consumer interface for the catalog database.
type store interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Source maps one category to the tables it is read from and the columns it keeps.
// Tables are concatenated in order (e.g. Arabic rows, then English rows).
type Source struct {
	Category string
	Tables   []string
	Columns  []string
}

// Repo loads category collections from the clinic catalog.
type Repo struct {
	store   store
	sources []Source
	logger  *zap.Logger
}

// New validates sources and creates a catalog repository.
func New(s store, sources []Source, logger *zap.Logger) (*Repo, error) {
	for _, src := range sources {
		if len(src.Tables) == 0 || len(src.Columns) == 0 {
			return nil, fmt.Errorf("category %q needs tables and columns: %w", src.Category, domain.ErrConfiguration)
		}
		for _, name := range append(append([]string{}, src.Tables...), src.Columns...) {
			if !identRegex.MatchString(name) {
				return nil, fmt.Errorf("category %q: invalid identifier %q: %w", src.Category, name, domain.ErrConfiguration)
			}
		}
	}
	return &Repo{store: s, sources: sources, logger: logger}, nil
}

// Load reads every configured category. The result is keyed by category name.
func (r *Repo) Load(ctx context.Context) (map[string]collection.Collection, error) {
	out := make(map[string]collection.Collection, len(r.sources))
	for _, src := range r.sources {
		c, err := r.loadCategory(ctx, src)
		if err != nil {
			return nil, err
		}
		out[src.Category] = c
		r.logger.Info("Category loaded",
			zap.String("category", src.Category),
			zap.Strings("tables", src.Tables),
			zap.Int("records", c.Len()),
		)
	}
	return out, nil
}

func (r *Repo) loadCategory(ctx context.Context, src Source) (collection.Collection, error) {
	parts := make([]collection.Collection, 0, len(src.Tables))
	for _, table := range src.Tables {
		records, err := r.readTable(ctx, table, src.Columns)
		if err != nil {
			return collection.Collection{}, fmt.Errorf("category %q: %w", src.Category, err)
		}
		c, err := collection.New(table, src.Columns, records)
		if err != nil {
			return collection.Collection{}, fmt.Errorf("category %q table %q: %w", src.Category, table, err)
		}
		parts = append(parts, c)
	}
	return collection.Concat(src.Category, parts...)
}

func (r *Repo) readTable(ctx context.Context, table string, columns []string) ([]collection.Record, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqlite.QuoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), sqlite.QuoteIdent(table))

	rows, err := r.store.QueryContext(ctx, query)
	if err != nil {
		if sqlite.IsSchemaError(err) {
			return nil, fmt.Errorf("read table %q: %v: %w", table, err, domain.ErrSchema)
		}
		return nil, fmt.Errorf("read table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []collection.Record
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", table, err)
		}
		rec := make(collection.Record, len(columns))
		for i, c := range columns {
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", table, err)
	}
	return records, nil
}
