package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is a single result row keyed by column name. Values keep whatever type
// the driver produced; use the accessor methods to coerce them.
type Row map[string]any

// Store is the narrow read-mostly surface the reporting engine consumes.
// Schema introspection is part of the contract because optional tables and
// columns vary across deployments.
type Store interface {
	FetchScalar(ctx context.Context, query string, args ...any) (float64, error)
	FetchRows(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) error
	TableExists(ctx context.Context, name string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
}

// PgStore implements Store on a pgx connection pool. Schema probes are
// memoized for the process lifetime; the schema is static per deployment so
// this strictly reduces probing below the once-per-report requirement.
type PgStore struct {
	pool *pgxpool.Pool

	mu      sync.RWMutex
	tables  map[string]bool
	columns map[string]bool
}

// NewStore wraps a pool in a PgStore.
func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{
		pool:    pool,
		tables:  make(map[string]bool),
		columns: make(map[string]bool),
	}
}

// FetchScalar runs a single-value query, coercing NULL and numeric types to float64.
func (s *PgStore) FetchScalar(ctx context.Context, query string, args ...any) (float64, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("db: store not initialised")
	}
	var raw any
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return 0, fmt.Errorf("db: fetch scalar: %w", err)
	}
	return ToFloat64(raw), nil
}

// FetchRows runs a query and materialises every row as a column-keyed map.
func (s *PgStore) FetchRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("db: store not initialised")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db: fetch rows: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("db: row values: %w", err)
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			row[string(field.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement that returns no rows. The engine only uses this for
// the swap profit-link cache upserts.
func (s *PgStore) Exec(ctx context.Context, query string, args ...any) error {
	if s == nil || s.pool == nil {
		return errors.New("db: store not initialised")
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("db: exec: %w", err)
	}
	return nil
}

// TableExists reports whether a table is present in the public schema.
func (s *PgStore) TableExists(ctx context.Context, name string) (bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	if known, ok := s.tables[name]; ok {
		s.mu.RUnlock()
		return known, nil
	}
	s.mu.RUnlock()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db: table probe %s: %w", name, err)
	}
	s.mu.Lock()
	s.tables[name] = exists
	s.mu.Unlock()
	return exists, nil
}

// ColumnExists reports whether a column is present on the named table.
func (s *PgStore) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	column = strings.ToLower(strings.TrimSpace(column))
	key := table + "." + column
	s.mu.RLock()
	if known, ok := s.columns[key]; ok {
		s.mu.RUnlock()
		return known, nil
	}
	s.mu.RUnlock()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2)`,
		table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db: column probe %s: %w", key, err)
	}
	s.mu.Lock()
	s.columns[key] = exists
	s.mu.Unlock()
	return exists, nil
}

// ToFloat64 coerces driver values to float64, treating NULL as zero.
func ToFloat64(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case int16:
		return float64(val)
	case int:
		return float64(val)
	case uint64:
		return float64(val)
	case uint32:
		return float64(val)
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return 0
		}
		return f.Float64
	default:
		return 0
	}
}

// Float returns the column coerced to float64, zero when absent or NULL.
func (r Row) Float(key string) float64 {
	return ToFloat64(r[key])
}

// FloatPtr returns the column as *float64, nil when absent or NULL.
func (r Row) FloatPtr(key string) *float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	f := ToFloat64(v)
	return &f
}

// Int64 returns the column coerced to int64, zero when absent or NULL.
func (r Row) Int64(key string) int64 {
	switch val := r[key].(type) {
	case nil:
		return 0
	case int64:
		return val
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int:
		return int64(val)
	default:
		return int64(ToFloat64(val))
	}
}

// Int64Ptr returns the column as *int64, nil when absent or NULL.
func (r Row) Int64Ptr(key string) *int64 {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	i := r.Int64(key)
	return &i
}

// String returns the column as a trimmed string, empty when absent or NULL.
func (r Row) String(key string) string {
	switch val := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	default:
		return ""
	}
}

// Time returns the column as time.Time, zero value when absent or NULL.
func (r Row) Time(key string) time.Time {
	switch val := r[key].(type) {
	case time.Time:
		return val
	case pgtype.Date:
		if val.Valid {
			return val.Time
		}
	case pgtype.Timestamp:
		if val.Valid {
			return val.Time
		}
	case pgtype.Timestamptz:
		if val.Valid {
			return val.Time
		}
	}
	return time.Time{}
}
