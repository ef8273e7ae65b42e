package ingest

import (
	"context"
	"fmt"

	"github.com/odvcencio/histdb/pkg/compress"
	"github.com/odvcencio/histdb/pkg/object"
)

// BlobWriter is the slice of a store transaction the blob store needs.
type BlobWriter interface {
	BlobExists(ctx context.Context, h object.Hash) (bool, error)
	InsertBlob(ctx context.Context, h object.Hash, compressed []byte) (bool, error)
}

// BlobStore is content-addressed, compressed blob storage. Content is
// keyed by hash, so writing the same hash twice leaves one row.
type BlobStore struct {
	w   BlobWriter
	lz4 *compress.Compressor

	// Added counts rows written; RawBytes and StoredBytes sum their sizes
	// before and after compression.
	Added       int
	RawBytes    int64
	StoredBytes int64
}

// NewBlobStore returns a BlobStore compressing at the given LZ4 level.
func NewBlobStore(w BlobWriter, level int) (*BlobStore, error) {
	c, err := compress.NewCompressor(level)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return &BlobStore{w: w, lz4: c}, nil
}

// Exists reports whether content for h is already stored.
func (b *BlobStore) Exists(ctx context.Context, h object.Hash) (bool, error) {
	return b.w.BlobExists(ctx, h)
}

// Put compresses raw as one frame and stores it under h unless a row for
// h already exists. It reports whether a row was added.
func (b *BlobStore) Put(ctx context.Context, h object.Hash, raw []byte) (bool, error) {
	packed, err := b.lz4.Compress(raw)
	if err != nil {
		return false, fmt.Errorf("put blob %s: %w", h, err)
	}
	added, err := b.w.InsertBlob(ctx, h, packed)
	if err != nil {
		return false, err
	}
	if added {
		b.Added++
		b.RawBytes += int64(len(raw))
		b.StoredBytes += int64(len(packed))
	}
	return added, nil
}
