package ingest

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"

	"github.com/ryanuber/go-glob"

	"github.com/odvcencio/histdb/pkg/object"
)

var errMissing = errors.New("missing object")

func hashOf(label string) object.Hash {
	return object.Hash(sha1.Sum([]byte(label)))
}

func hashPtr(h object.Hash) *object.Hash { return &h }

// memRepo is a synthetic object.Reader.
type memRepo struct {
	commits map[object.Hash]*object.Commit
	trees   map[object.Hash]*object.Tree
	blobs   map[object.Hash][]byte
	tags    map[object.Hash]object.Hash
	refs    []object.Reference

	treeReads map[object.Hash]int
	blobReads int
}

func newMemRepo() *memRepo {
	return &memRepo{
		commits:   make(map[object.Hash]*object.Commit),
		trees:     make(map[object.Hash]*object.Tree),
		blobs:     make(map[object.Hash][]byte),
		tags:      make(map[object.Hash]object.Hash),
		treeReads: make(map[object.Hash]int),
	}
}

func (r *memRepo) ReadCommit(h object.Hash) (*object.Commit, error) {
	c, ok := r.commits[h]
	if !ok {
		return nil, fmt.Errorf("read commit %s: %w", h, errMissing)
	}
	return c, nil
}

func (r *memRepo) ReadTree(h object.Hash) (*object.Tree, error) {
	r.treeReads[h]++
	t, ok := r.trees[h]
	if !ok {
		return nil, fmt.Errorf("read tree %s: %w", h, errMissing)
	}
	return t, nil
}

func (r *memRepo) ReadBlob(h object.Hash) ([]byte, error) {
	r.blobReads++
	b, ok := r.blobs[h]
	if !ok {
		return nil, fmt.Errorf("read blob %s: %w", h, errMissing)
	}
	return b, nil
}

func (r *memRepo) PeelCommit(h object.Hash) (object.Hash, error) {
	for {
		if _, ok := r.commits[h]; ok {
			return h, nil
		}
		target, ok := r.tags[h]
		if !ok {
			return object.Hash{}, fmt.Errorf("peel %s: %w", h, errMissing)
		}
		h = target
	}
}

func (r *memRepo) References(pattern string) ([]object.Reference, error) {
	var out []object.Reference
	for _, ref := range r.refs {
		if glob.Glob(pattern, ref.Name) {
			out = append(out, ref)
		}
	}
	return out, nil
}

// blob adds content and returns its hash.
func (r *memRepo) blob(content string) object.Hash {
	h := hashOf("blob:" + content)
	r.blobs[h] = []byte(content)
	return h
}

// tree adds a tree with the given entries, named by label.
func (r *memRepo) tree(label string, entries ...object.TreeEntry) object.Hash {
	h := hashOf("tree:" + label)
	r.trees[h] = &object.Tree{Hash: h, Entries: entries}
	return h
}

// commit adds a commit at committer time when.
func (r *memRepo) commit(label string, when int64, tree object.Hash, parents ...object.Hash) object.Hash {
	h := hashOf("commit:" + label)
	r.commits[h] = &object.Commit{
		Hash:      h,
		TreeHash:  tree,
		Parents:   parents,
		Author:    object.Signature{Name: []byte("a"), Email: []byte("a@example.com"), When: when},
		Committer: object.Signature{Name: []byte("c"), Email: []byte("c@example.com"), When: when},
		Message:   []byte(label),
	}
	return h
}

// tag adds an annotated tag object pointing at target.
func (r *memRepo) tag(label string, target object.Hash) object.Hash {
	h := hashOf("tag:" + label)
	r.tags[h] = target
	return h
}

func blobEntry(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: []byte(name), Kind: object.KindBlob, Hash: h}
}

func treeEntry(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: []byte(name), Kind: object.KindTree, Hash: h}
}

type edgeKey struct {
	tree object.Hash
	name string
	kind object.Kind
	oid  object.Hash
}

// memTx is an in-memory Tx. Writes land directly; Rollback only records
// that it was called.
type memTx struct {
	repos   map[int64]string
	refs    map[int64]map[string]object.Hash
	commits map[object.Hash]*object.Commit
	edges   map[edgeKey]bool
	blobs   map[object.Hash][]byte

	blobExistsCalls int
	committed       bool
	rolledBack      bool
}

var _ Tx = (*memTx)(nil)

func newMemTx() *memTx {
	return &memTx{
		repos:   make(map[int64]string),
		refs:    make(map[int64]map[string]object.Hash),
		commits: make(map[object.Hash]*object.Commit),
		edges:   make(map[edgeKey]bool),
		blobs:   make(map[object.Hash][]byte),
	}
}

func (t *memTx) UpsertRepository(_ context.Context, id int64, name string) error {
	t.repos[id] = name
	return nil
}

func (t *memTx) RecordedRefs(_ context.Context, repoID int64) (map[string]object.Hash, error) {
	out := make(map[string]object.Hash)
	for name, h := range t.refs[repoID] {
		out[name] = h
	}
	return out, nil
}

func (t *memTx) SetRef(_ context.Context, repoID int64, name string, target object.Hash) error {
	if t.refs[repoID] == nil {
		t.refs[repoID] = make(map[string]object.Hash)
	}
	t.refs[repoID][name] = target
	return nil
}

func (t *memTx) InsertCommit(_ context.Context, c *object.Commit) (bool, error) {
	if _, ok := t.commits[c.Hash]; ok {
		return false, nil
	}
	t.commits[c.Hash] = c
	return true, nil
}

func (t *memTx) InsertTreeEntry(_ context.Context, tree object.Hash, e object.TreeEntry) (bool, error) {
	k := edgeKey{tree: tree, name: string(e.Name), kind: e.Kind, oid: e.Hash}
	if t.edges[k] {
		return false, nil
	}
	t.edges[k] = true
	return true, nil
}

func (t *memTx) BlobExists(_ context.Context, h object.Hash) (bool, error) {
	t.blobExistsCalls++
	_, ok := t.blobs[h]
	return ok, nil
}

func (t *memTx) InsertBlob(_ context.Context, h object.Hash, compressed []byte) (bool, error) {
	if _, ok := t.blobs[h]; ok {
		return false, nil
	}
	t.blobs[h] = compressed
	return true, nil
}

func (t *memTx) Commit() error {
	t.committed = true
	return nil
}

func (t *memTx) Rollback() error {
	t.rolledBack = true
	return nil
}

func (t *memTx) commitHashes() []object.Hash {
	out := make([]object.Hash, 0, len(t.commits))
	for h := range t.commits {
		out = append(out, h)
	}
	return out
}
