package memory

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/storage"
	"github.com/yndnr/tokvault-go/pkg/cmap"
)

// Table stores one record kind.
type Table[T any, P storage.Record[T]] struct {
	rows   *cmap.Map[solana.PublicKey, P]
	schema storage.Schema[T]

	// mu serializes writers so onChange observes writes in order.
	mu sync.Mutex

	// onChange maintains secondary indexes. old is nil on create, cur is
	// nil on delete.
	onChange func(old, cur *T)
}

// NewTable creates an empty table.
func NewTable[T any, P storage.Record[T]](schema storage.Schema[T], shards int) *Table[T, P] {
	return &Table[T, P]{
		rows:   cmap.NewWithShards[solana.PublicKey, P](shards),
		schema: schema,
	}
}

// Get retrieves a record by identity.
func (t *Table[T, P]) Get(_ context.Context, id solana.PublicKey) (*T, error) {
	row, ok := t.rows.Get(id)
	if !ok {
		return nil, t.schema.NotFound.WithDetails(id.String())
	}
	return row.Clone(), nil
}

// Create stores a new record. A zero version is stamped to 1.
func (t *Table[T, P]) Create(_ context.Context, rec *T) error {
	if err := t.schema.Check(rec); err != nil {
		return err
	}
	id := t.schema.Key(rec)

	clone := P(P(rec).Clone())
	if clone.GetVersion() == 0 {
		clone.SetVersion(1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.rows.SetIfAbsent(id, clone) {
		return t.schema.Conflict.WithDetails(id.String())
	}
	P(rec).SetVersion(clone.GetVersion())

	if t.onChange != nil {
		t.onChange(nil, clone)
	}
	return nil
}

// Update replaces a record if its stored version equals expectedVersion.
// On success the caller's record carries the new version.
func (t *Table[T, P]) Update(_ context.Context, rec *T, expectedVersion uint64) error {
	if err := t.schema.Check(rec); err != nil {
		return err
	}
	id := t.schema.Key(rec)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.rows.Get(id)
	if !ok {
		return t.schema.NotFound.WithDetails(id.String())
	}

	clone := P(P(rec).Clone())
	if !cmap.CompareAndSwap(t.rows, id, expectedVersion, clone) {
		return t.schema.VersionMismatch(id, expectedVersion, existing.GetVersion())
	}
	P(rec).SetVersion(clone.GetVersion())

	if t.onChange != nil {
		t.onChange(existing, clone)
	}
	return nil
}

// Delete removes a record.
func (t *Table[T, P]) Delete(_ context.Context, id solana.PublicKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.rows.Pop(id)
	if !ok {
		return t.schema.NotFound.WithDetails(id.String())
	}
	if t.onChange != nil {
		t.onChange(old, nil)
	}
	return nil
}

// List returns clones of every record accepted by match (all records
// when match is nil), ordered by identity.
func (t *Table[T, P]) List(_ context.Context, match func(*T) bool) ([]*T, error) {
	var out []*T
	for _, row := range t.rows.All() {
		if match == nil || match(row) {
			out = append(out, row.Clone())
		}
	}
	storage.SortByKey(out, t.schema.Key)
	return out, nil
}

// Count returns the number of stored records.
func (t *Table[T, P]) Count() int {
	return t.rows.Count()
}

func (t *Table[T, P]) getMany(ids []solana.PublicKey, match func(*T) bool) []*T {
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		row, ok := t.rows.Get(id)
		if !ok {
			continue
		}
		if match == nil || match(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}
