package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/odvcencio/histdb/pkg/compress"
	"github.com/odvcencio/histdb/pkg/object"
)

const (
	insertTreeEntrySQL = `INSERT OR IGNORE INTO tree_entries (tree_oid, name, kind, oid)
		VALUES (?, ?, ?, ?)
		RETURNING tree_oid, name, kind, oid`
	insertCommitSQL = `INSERT OR IGNORE INTO commits (
			oid, tree_oid, message, parents,
			author_name, author_email, author_date,
			committer_name, committer_email, committer_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	blobExistsSQL = `SELECT EXISTS (SELECT 1 FROM blobs WHERE oid = ?)`
	insertBlobSQL = `INSERT OR IGNORE INTO blobs (oid, content_lz4) VALUES (?, ?)`
)

// Tx is an open transaction on the store. Nothing written through a Tx is
// visible to other connections until Commit.
type Tx struct {
	tx *sqlx.Tx

	insertTreeEntry *sqlx.Stmt
	insertCommit    *sqlx.Stmt
	blobExists      *sqlx.Stmt
	insertBlob      *sqlx.Stmt
}

func (t *Tx) prepare(ctx context.Context) error {
	for _, p := range []struct {
		dst   **sqlx.Stmt
		query string
	}{
		{&t.insertTreeEntry, insertTreeEntrySQL},
		{&t.insertCommit, insertCommitSQL},
		{&t.blobExists, blobExistsSQL},
		{&t.insertBlob, insertBlobSQL},
	} {
		stmt, err := t.tx.PreparexContext(ctx, p.query)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		*p.dst = stmt
	}
	return nil
}

// Commit makes the transaction's writes durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Rolling back a finished transaction
// is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// UpsertRepository records a repository's display name.
func (t *Tx) UpsertRepository(ctx context.Context, id int64, name string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO repositories (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		id, name)
	if err != nil {
		return fmt.Errorf("upsert repository %d: %w", id, err)
	}
	return nil
}

// RepositoryName returns the recorded display name of a repository.
func (t *Tx) RepositoryName(ctx context.Context, id int64) (string, error) {
	var name string
	if err := t.tx.GetContext(ctx, &name, `SELECT name FROM repositories WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("repository %d: %w", id, err)
	}
	return name, nil
}

type refRow struct {
	Name   string      `db:"name"`
	Target object.Hash `db:"target_oid"`
}

// RecordedRefs returns the last recorded target of every reference of a
// repository.
func (t *Tx) RecordedRefs(ctx context.Context, repoID int64) (map[string]object.Hash, error) {
	var rows []refRow
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT name, target_oid FROM direct_refs WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, fmt.Errorf("recorded refs of repository %d: %w", repoID, err)
	}
	out := make(map[string]object.Hash, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Target
	}
	return out, nil
}

// SetRef records the current target of a reference.
func (t *Tx) SetRef(ctx context.Context, repoID int64, name string, target object.Hash) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO direct_refs (repo_id, name, target_oid) VALUES (?, ?, ?)
		 ON CONFLICT (repo_id, name) DO UPDATE SET target_oid = excluded.target_oid`,
		repoID, name, target)
	if err != nil {
		return fmt.Errorf("set ref %s: %w", name, err)
	}
	return nil
}

// InsertCommit inserts a commit row unless one with the same hash exists.
// Parents are stored concatenated at a fixed stride of object.HashSize.
func (t *Tx) InsertCommit(ctx context.Context, c *object.Commit) (bool, error) {
	res, err := t.insertCommit.ExecContext(ctx,
		c.Hash, c.TreeHash, nonNil(c.Message), object.JoinHashes(c.Parents),
		nonNil(c.Author.Name), nonNil(c.Author.Email), c.Author.When,
		nonNil(c.Committer.Name), nonNil(c.Committer.Email), c.Committer.When,
	)
	if err != nil {
		return false, fmt.Errorf("insert commit %s: %w", c.Hash, err)
	}
	return rowsAdded(res)
}

type treeEntryRow struct {
	TreeOID object.Hash `db:"tree_oid"`
	Name    []byte      `db:"name"`
	Kind    object.Kind `db:"kind"`
	OID     object.Hash `db:"oid"`
}

// InsertTreeEntry inserts one tree edge and reports whether the row was
// added. The insert and the report are a single statement, so there is no
// window between checking and inserting.
func (t *Tx) InsertTreeEntry(ctx context.Context, tree object.Hash, e object.TreeEntry) (bool, error) {
	var row treeEntryRow
	err := t.insertTreeEntry.QueryRowxContext(ctx, tree, nonNil(e.Name), int64(e.Kind), e.Hash).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert tree entry %s/%s: %w", tree, e.Name, err)
	}
	return true, nil
}

// TreeEntries returns the recorded edges of a tree ordered by name.
func (t *Tx) TreeEntries(ctx context.Context, tree object.Hash) ([]object.TreeEntry, error) {
	var rows []treeEntryRow
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT tree_oid, name, kind, oid FROM tree_entries WHERE tree_oid = ? ORDER BY name`, tree)
	if err != nil {
		return nil, fmt.Errorf("tree entries of %s: %w", tree, err)
	}
	out := make([]object.TreeEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, object.TreeEntry{Name: r.Name, Kind: r.Kind, Hash: r.OID})
	}
	return out, nil
}

// BlobExists reports whether content for h is stored.
func (t *Tx) BlobExists(ctx context.Context, h object.Hash) (bool, error) {
	var exists bool
	if err := t.blobExists.GetContext(ctx, &exists, h); err != nil {
		return false, fmt.Errorf("blob exists %s: %w", h, err)
	}
	return exists, nil
}

// InsertBlob stores compressed content unless h is already present.
func (t *Tx) InsertBlob(ctx context.Context, h object.Hash, compressed []byte) (bool, error) {
	res, err := t.insertBlob.ExecContext(ctx, h, compressed)
	if err != nil {
		return false, fmt.Errorf("insert blob %s: %w", h, err)
	}
	return rowsAdded(res)
}

// ReadBlob returns the decompressed content of a stored blob.
func (t *Tx) ReadBlob(ctx context.Context, h object.Hash) ([]byte, error) {
	var packed []byte
	err := t.tx.GetContext(ctx, &packed, `SELECT content_lz4 FROM blobs WHERE oid = ?`, h)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", h, err)
	}
	data, err := compress.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", h, err)
	}
	return data, nil
}

type commitRow struct {
	OID            object.Hash `db:"oid"`
	TreeOID        object.Hash `db:"tree_oid"`
	Message        []byte      `db:"message"`
	Parents        []byte      `db:"parents"`
	AuthorName     []byte      `db:"author_name"`
	AuthorEmail    []byte      `db:"author_email"`
	AuthorDate     int64       `db:"author_date"`
	CommitterName  []byte      `db:"committer_name"`
	CommitterEmail []byte      `db:"committer_email"`
	CommitterDate  int64       `db:"committer_date"`
}

// ReadCommit reads a stored commit back.
func (t *Tx) ReadCommit(ctx context.Context, h object.Hash) (*object.Commit, error) {
	var r commitRow
	if err := t.tx.GetContext(ctx, &r, `SELECT * FROM commits WHERE oid = ?`, h); err != nil {
		return nil, fmt.Errorf("commit %s: %w", h, err)
	}
	parents, err := object.SplitHashes(r.Parents)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", h, err)
	}
	return &object.Commit{
		Hash:      r.OID,
		TreeHash:  r.TreeOID,
		Parents:   parents,
		Author:    object.Signature{Name: r.AuthorName, Email: r.AuthorEmail, When: r.AuthorDate},
		Committer: object.Signature{Name: r.CommitterName, Email: r.CommitterEmail, When: r.CommitterDate},
		Message:   r.Message,
	}, nil
}

// Counts is the number of rows in each mirrored table.
type Counts struct {
	Refs        int `db:"refs"`
	Commits     int `db:"commits"`
	TreeEntries int `db:"tree_entries"`
	Blobs       int `db:"blobs"`
}

// Counts returns table sizes.
func (t *Tx) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := t.tx.GetContext(ctx, &c, `SELECT
		(SELECT COUNT(*) FROM direct_refs)  AS refs,
		(SELECT COUNT(*) FROM commits)      AS commits,
		(SELECT COUNT(*) FROM tree_entries) AS tree_entries,
		(SELECT COUNT(*) FROM blobs)        AS blobs`)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

func rowsAdded(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// nonNil keeps empty byte fields from binding as NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
