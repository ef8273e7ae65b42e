package ingest

import (
	"context"
	"fmt"

	"github.com/odvcencio/histdb/pkg/object"
)

// CommitWriter records commit rows.
type CommitWriter interface {
	InsertCommit(ctx context.Context, c *object.Commit) (bool, error)
}

// CommitIngestor stores one commit and its root tree.
type CommitIngestor struct {
	reader object.Reader
	w      CommitWriter
	trees  *TreeIngestor

	// Added counts commit rows written.
	Added int
}

// NewCommitIngestor returns a CommitIngestor that hands root trees to trees.
func NewCommitIngestor(reader object.Reader, w CommitWriter, trees *TreeIngestor) *CommitIngestor {
	return &CommitIngestor{reader: reader, w: w, trees: trees}
}

// Ingest stores commit h. The tree goes in before the commit row, so a
// stored commit always has its full tree stored.
func (c *CommitIngestor) Ingest(ctx context.Context, h object.Hash) error {
	commit, err := c.reader.ReadCommit(h)
	if err != nil {
		return fmt.Errorf("ingest commit %s: %w", h, err)
	}
	if err := c.trees.Ingest(ctx, commit.TreeHash); err != nil {
		return fmt.Errorf("ingest commit %s: %w", h, err)
	}
	added, err := c.w.InsertCommit(ctx, commit)
	if err != nil {
		return err
	}
	if added {
		c.Added++
	}
	return nil
}
