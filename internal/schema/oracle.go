package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

const defaultSampleRowCount = 5

// Oracle fetches and caches one database's Schema across a task's
// iterations. The index portion of the cache is invalidated after every
// CreateIndex action (InvalidateIndexes) so the next Fetch call picks up
// the new index without re-fetching columns, keys, or sample rows.
type Oracle struct {
	Conn           *pgx.Conn
	SampleRowCount int

	mu           sync.Mutex
	cached       *Schema
	dirtyTables  map[string]bool // tables whose index lists the next Fetch re-fetches
	neverFetched bool
}

// NewOracle returns an Oracle over conn with the default sample-row count.
func NewOracle(conn *pgx.Conn) *Oracle {
	return &Oracle{Conn: conn, SampleRowCount: defaultSampleRowCount, neverFetched: true}
}

func (o *Oracle) sampleRowCount() int {
	if o.SampleRowCount <= 0 {
		return defaultSampleRowCount
	}
	return o.SampleRowCount
}

// InvalidateIndexes marks table's index list as stale; the next Fetch
// re-fetches indexes for that table only, leaving columns/keys/samples
// cached. Called by the Executor after a CreateIndex action succeeds.
func (o *Oracle) InvalidateIndexes(table string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dirtyTables == nil {
		o.dirtyTables = make(map[string]bool)
	}
	o.dirtyTables[table] = true
}

// InvalidateAll discards the entire cache; the next Fetch rebuilds from
// scratch.
func (o *Oracle) InvalidateAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cached = nil
	o.dirtyTables = nil
	o.neverFetched = true
}

// Fetch returns the cached Schema, rebuilding it (or just the dirty
// tables' indexes) as needed.
func (o *Oracle) Fetch(ctx context.Context, tables []string) (Schema, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.neverFetched || o.cached == nil {
		s, err := o.fetchFull(ctx, tables)
		if err != nil {
			return Schema{}, err
		}
		o.cached = &s
		o.dirtyTables = nil
		o.neverFetched = false
		return *o.cached, nil
	}

	for table := range o.dirtyTables {
		idx, err := fetchIndexes(ctx, o.Conn, table)
		if err != nil {
			return Schema{}, fmt.Errorf("refreshing indexes for %s: %w", table, err)
		}
		entry := o.cached.Tables[table]
		entry.Indexes = idx
		o.cached.Tables[table] = entry
	}
	o.dirtyTables = nil

	return *o.cached, nil
}

func (o *Oracle) fetchFull(ctx context.Context, tables []string) (Schema, error) {
	s := Schema{Tables: make(map[string]Table), SampleRows: make(map[string][][]any)}

	names := tables
	if len(names) == 0 {
		var err error
		names, err = fetchTableNames(ctx, o.Conn)
		if err != nil {
			return Schema{}, fmt.Errorf("listing tables: %w", err)
		}
	}

	for _, table := range names {
		cols, err := fetchColumns(ctx, o.Conn, table)
		if err != nil {
			return Schema{}, fmt.Errorf("fetching columns for %s: %w", table, err)
		}
		pk, err := fetchPrimaryKey(ctx, o.Conn, table)
		if err != nil {
			return Schema{}, fmt.Errorf("fetching primary key for %s: %w", table, err)
		}
		fks, err := fetchForeignKeys(ctx, o.Conn, table)
		if err != nil {
			return Schema{}, fmt.Errorf("fetching foreign keys for %s: %w", table, err)
		}
		idx, err := fetchIndexes(ctx, o.Conn, table)
		if err != nil {
			return Schema{}, fmt.Errorf("fetching indexes for %s: %w", table, err)
		}
		s.Tables[table] = Table{Columns: cols, PrimaryKey: pk, ForeignKeys: fks, Indexes: idx}

		rows, err := fetchSampleRows(ctx, o.Conn, table, o.sampleRowCount())
		if err != nil {
			// Sample rows are a convenience, not load-bearing; a table the
			// connecting role can't SELECT from still gets its structural
			// metadata.
			continue
		}
		s.SampleRows[table] = rows
	}

	return s, nil
}
