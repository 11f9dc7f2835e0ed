package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"github.com/EHam1/very-professional-blog/internal/storage"
)

// ArchiveSuffix is the extension of archived rows: snappy-compressed JSON.
const ArchiveSuffix = ".json.sz"

// ArchiveStore writes each row as one compressed object:
//
//	{prefix}/{shard}/{id}.json.sz
//
// id is a time-ordered UUIDv7, so objects within a shard list in insertion
// order. shard is two hex digits of murmur3(page), which spreads a hot site
// across key prefixes.
type ArchiveStore struct {
	objects storage.ObjectStorage
	prefix  string
}

// NewArchiveStore creates an archive under prefix in objects.
func NewArchiveStore(objects storage.ObjectStorage, prefix string) *ArchiveStore {
	return &ArchiveStore{
		objects: objects,
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Insert compresses row and writes it as a new object.
func (a *ArchiveStore) Insert(ctx context.Context, row Row) (Row, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: failed to generate id: %w", err)
	}
	row.ID = RowID(id.String())

	data, err := json.Marshal(row)
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: failed to encode row: %w", err)
	}

	if err := a.objects.Put(ctx, a.key(row), snappy.Encode(nil, data)); err != nil {
		return Row{}, fmt.Errorf("eventstore: archive write failed: %w", err)
	}
	return row, nil
}

// Rows reads back every archived row, ordered by id.
func (a *ArchiveStore) Rows(ctx context.Context) ([]Row, error) {
	keys, err := a.objects.List(ctx, a.prefix)
	if err != nil {
		return nil, fmt.Errorf("eventstore: archive list failed: %w", err)
	}

	var rows []Row
	for _, key := range keys {
		if !strings.HasSuffix(key, ArchiveSuffix) {
			continue
		}
		compressed, err := a.objects.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("eventstore: archive read failed: %w", err)
		}
		data, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("eventstore: corrupt archive object %s: %w", key, err)
		}
		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("eventstore: corrupt archive object %s: %w", key, err)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// Close is a no-op; object storage holds no per-store resources.
func (a *ArchiveStore) Close() error {
	return nil
}

func (a *ArchiveStore) key(row Row) string {
	return path.Join(a.prefix, Shard(Value(row.Page)), string(row.ID)+ArchiveSuffix)
}

// Shard returns the two-hex-digit shard for a page.
func Shard(page string) string {
	return fmt.Sprintf("%02x", murmur3.Sum32([]byte(page))&0xff)
}
