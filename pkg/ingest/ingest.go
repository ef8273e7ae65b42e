// Package ingest mirrors the commit, tree and blob graph of a repository
// into the store, writing only what changed since the previous run.
package ingest

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/odvcencio/histdb/pkg/compress"
	"github.com/odvcencio/histdb/pkg/object"
	"github.com/odvcencio/histdb/pkg/store"
)

// Tx is the store transaction a run writes through.
type Tx interface {
	RefState
	BlobWriter
	TreeWriter
	CommitWriter

	UpsertRepository(ctx context.Context, id int64, name string) error
	SetRef(ctx context.Context, repoID int64, name string, target object.Hash) error
	Commit() error
	Rollback() error
}

var _ Tx = (*store.Tx)(nil)

// Options configures one run.
type Options struct {
	RepoID   int64
	RepoName string
	// RefGlob selects the references to mirror; empty means DefaultRefGlob.
	RefGlob       string
	LZ4Level      int
	TreeCacheSize int
	MaxWalkSteps  int
	Logger        *zap.Logger
}

// DefaultOptions returns options with every tunable at its default.
func DefaultOptions() Options {
	return Options{
		RefGlob:       DefaultRefGlob,
		LZ4Level:      compress.DefaultLevel,
		TreeCacheSize: DefaultTreeCacheSize,
		MaxWalkSteps:  DefaultMaxWalkSteps,
	}
}

// Summary reports what a run wrote.
type Summary struct {
	ChangedRefs int
	DeletedRefs int
	Commits     int
	TreeEntries int
	Blobs       int
	RawBytes    int64
	StoredBytes int64
	Elapsed     time.Duration
}

// Run ingests everything the live references of reader gained since the
// last run into st. The run is one transaction: on any error nothing it
// wrote is kept.
func Run(ctx context.Context, st *store.Store, reader object.Reader, opts Options) (Summary, error) {
	tx, err := st.Begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	return runTx(ctx, tx, reader, opts)
}

func runTx(ctx context.Context, tx Tx, reader object.Reader, opts Options) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = multierror.Append(err, rbErr)
		}
	}()

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Logger = opts.Logger.With(zap.Int64("repo_id", opts.RepoID))

	sum, err = ingestAll(ctx, tx, reader, opts)
	if err != nil {
		return Summary{}, err
	}
	if err := tx.Commit(); err != nil {
		return Summary{}, err
	}
	sum.Elapsed = time.Since(start)

	opts.Logger.Info("ingest finished",
		zap.Int("commits", sum.Commits),
		zap.Int("tree_entries", sum.TreeEntries),
		zap.Int("blobs", sum.Blobs),
		zap.Int64("raw_bytes", sum.RawBytes),
		zap.Int64("stored_bytes", sum.StoredBytes),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

func ingestAll(ctx context.Context, tx Tx, reader object.Reader, opts Options) (Summary, error) {
	log := opts.Logger
	pattern := opts.RefGlob
	if pattern == "" {
		pattern = DefaultRefGlob
	}

	if err := tx.UpsertRepository(ctx, opts.RepoID, opts.RepoName); err != nil {
		return Summary{}, err
	}

	changes, err := DiffRefs(ctx, reader, tx, opts.RepoID, pattern)
	if err != nil {
		return Summary{}, err
	}
	for _, d := range changes.Changed {
		log.Debug("reference changed", zap.Stringer("ref", d))
	}
	for _, name := range changes.Deleted {
		log.Info("reference deleted, recorded target left in place", zap.String("ref", name))
	}

	commits, err := NewWalker(reader, opts.MaxWalkSteps).Walk(ctx, changes.Changed)
	if err != nil {
		return Summary{}, err
	}
	log.Info("commits to ingest", zap.Int("count", len(commits)), zap.Int("changed_refs", len(changes.Changed)))

	blobs, err := NewBlobStore(tx, opts.LZ4Level)
	if err != nil {
		return Summary{}, err
	}
	trees, err := NewTreeIngestor(reader, tx, blobs, opts.TreeCacheSize, log)
	if err != nil {
		return Summary{}, err
	}
	ci := NewCommitIngestor(reader, tx, trees)
	for i, h := range commits {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		if err := ci.Ingest(ctx, h); err != nil {
			return Summary{}, err
		}
		log.Debug("commit ingested", zap.Stringer("commit", h), zap.Int("index", i+1), zap.Int("total", len(commits)))
	}

	for _, d := range changes.Changed {
		if err := tx.SetRef(ctx, opts.RepoID, d.Name, *d.New); err != nil {
			return Summary{}, err
		}
	}

	return Summary{
		ChangedRefs: len(changes.Changed),
		DeletedRefs: len(changes.Deleted),
		Commits:     ci.Added,
		TreeEntries: trees.Added,
		Blobs:       blobs.Added,
		RawBytes:    blobs.RawBytes,
		StoredBytes: blobs.StoredBytes,
	}, nil
}
