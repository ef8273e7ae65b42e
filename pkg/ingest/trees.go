package ingest

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/odvcencio/histdb/pkg/object"
)

// DefaultTreeCacheSize bounds the per-run set of trees already walked.
const DefaultTreeCacheSize = 65536

// TreeWriter records tree edges. InsertTreeEntry reports whether the edge
// was new; an edge that already existed means the subtree below it is
// already stored.
type TreeWriter interface {
	InsertTreeEntry(ctx context.Context, tree object.Hash, e object.TreeEntry) (bool, error)
}

// TreeIngestor stores a tree and everything below it, visiting only edges
// the store has not seen before.
type TreeIngestor struct {
	reader object.Reader
	w      TreeWriter
	blobs  *BlobStore
	log    *zap.Logger

	// walked holds trees whose edges were all inserted during this run.
	walked *lru.Cache

	// Added counts tree_entries rows written.
	Added int
}

// NewTreeIngestor returns a TreeIngestor. cacheSize <= 0 selects
// DefaultTreeCacheSize.
func NewTreeIngestor(reader object.Reader, w TreeWriter, blobs *BlobStore, cacheSize int, log *zap.Logger) (*TreeIngestor, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultTreeCacheSize
	}
	walked, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("tree cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TreeIngestor{reader: reader, w: w, blobs: blobs, log: log, walked: walked}, nil
}

// Ingest stores the tree root and every subtree and blob reachable through
// an edge not yet in the store.
func (t *TreeIngestor) Ingest(ctx context.Context, root object.Hash) error {
	stack := []object.Hash{root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.walked.Contains(h) {
			continue
		}

		tree, err := t.reader.ReadTree(h)
		if err != nil {
			return fmt.Errorf("ingest tree %s: %w", h, err)
		}
		for _, e := range tree.Entries {
			added, err := t.w.InsertTreeEntry(ctx, h, e)
			if err != nil {
				return err
			}
			if !added {
				continue
			}
			t.Added++

			switch e.Kind {
			case object.KindTree:
				stack = append(stack, e.Hash)
			case object.KindBlob:
				if err := t.storeBlob(ctx, e.Hash); err != nil {
					return fmt.Errorf("ingest tree %s: entry %s: %w", h, e.Name, err)
				}
			default:
				// Submodule links, tags and unknown kinds are recorded as
				// edges only.
			}
		}
		t.walked.Add(h, struct{}{})
	}
	return nil
}

func (t *TreeIngestor) storeBlob(ctx context.Context, h object.Hash) error {
	exists, err := t.blobs.Exists(ctx, h)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	data, err := t.reader.ReadBlob(h)
	if err != nil {
		return err
	}
	if _, err := t.blobs.Put(ctx, h, data); err != nil {
		return err
	}
	t.log.Debug("blob stored", zap.Stringer("blob", h), zap.Int("bytes", len(data)))
	return nil
}
