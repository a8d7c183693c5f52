package collection

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/clinicrag/internal/domain"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Record is one row of a collection: field name to value.
type Record map[string]any

// SchemaError names the configured field that is missing from the records.
type SchemaError struct {
	Collection string
	Field      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q not present in collection %q", domain.ErrSchema, e.Field, e.Collection)
}

func (e *SchemaError) Unwrap() error { return domain.ErrSchema }

// Collection is an ordered set of records sharing one field set (immutable value object).
// Combined texts are present only on collections returned by Combine.
type Collection struct {
	name     string
	fields   []string
	records  []Record
	combined []string
}

// New validates and creates a Collection.
// Every record must carry exactly the given fields; extra or missing keys fail with ErrSchema.
func New(name string, fields []string, records []Record) (Collection, error) {
	if name == "" {
		return Collection{}, fmt.Errorf("collection name is required")
	}
	if !nameRegex.MatchString(name) {
		return Collection{}, fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	if err := validateFields(fields); err != nil {
		return Collection{}, err
	}

	for i, r := range records {
		if len(r) != len(fields) {
			return Collection{}, fmt.Errorf("record %d has %d fields, want %d: %w",
				i, len(r), len(fields), domain.ErrSchema)
		}
		for _, f := range fields {
			if _, ok := r[f]; !ok {
				return Collection{}, fmt.Errorf("record %d: %w", i, &SchemaError{Collection: name, Field: f})
			}
		}
	}

	return Collection{
		name:    name,
		fields:  slices.Clone(fields),
		records: cloneRecords(records),
	}, nil
}

func validateFields(fields []string) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" {
			return fmt.Errorf("empty field name: %w", domain.ErrSchema)
		}
		if seen[f] {
			return fmt.Errorf("duplicate field name %q: %w", f, domain.ErrSchema)
		}
		seen[f] = true
	}
	return nil
}

// Combine returns a copy of c where each record gains a combined text: the stringified
// values of fieldNames, in that order, joined by a single space. The input is not mutated.
func Combine(fieldNames []string, c Collection) (Collection, error) {
	if len(fieldNames) == 0 {
		return Collection{}, fmt.Errorf("no fields to combine: %w", domain.ErrSchema)
	}
	for _, f := range fieldNames {
		if !slices.Contains(c.fields, f) {
			return Collection{}, &SchemaError{Collection: c.name, Field: f}
		}
	}

	combined := make([]string, len(c.records))
	parts := make([]string, len(fieldNames))
	for i, r := range c.records {
		for j, f := range fieldNames {
			parts[j] = Stringify(r[f])
		}
		combined[i] = strings.Join(parts, " ")
	}

	return Collection{
		name:     c.name,
		fields:   slices.Clone(c.fields),
		records:  cloneRecords(c.records),
		combined: combined,
	}, nil
}

// Stringify renders a field value for combination. nil renders as an empty string.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Concat appends the records of others to c. All collections must share the same field set.
func Concat(name string, parts ...Collection) (Collection, error) {
	if len(parts) == 0 {
		return New(name, nil, nil)
	}
	fields := parts[0].fields
	var records []Record
	for _, p := range parts {
		if !sameFieldSet(fields, p.fields) {
			return Collection{}, fmt.Errorf("collection %q fields %v differ from %v: %w",
				p.name, p.fields, fields, domain.ErrSchema)
		}
		records = append(records, p.records...)
	}
	return New(name, fields, records)
}

func sameFieldSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, f := range b {
		if !slices.Contains(a, f) {
			return false
		}
	}
	return true
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Fields returns the field names in schema order.
func (c *Collection) Fields() []string { return slices.Clone(c.fields) }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// Record returns a copy of the i-th record.
func (c *Collection) Record(i int) Record {
	cp := make(Record, len(c.records[i]))
	for k, v := range c.records[i] {
		cp[k] = v
	}
	return cp
}

// Combined returns the combined texts, nil unless the collection came from Combine.
func (c *Collection) Combined() []string { return slices.Clone(c.combined) }

// IsCombined reports whether combined texts are populated.
func (c *Collection) IsCombined() bool { return c.combined != nil }
