// Package gitrepo reads commits, trees, blobs and references out of an
// on-disk git repository.
package gitrepo

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"
	"github.com/ryanuber/go-glob"

	"github.com/odvcencio/histdb/pkg/object"
)

// ErrNotFound is returned when a requested object is absent from the
// repository.
var ErrNotFound = errors.New("object not found")

// ErrNotCommit is returned when a tag chain ends at something other than
// a commit.
var ErrNotCommit = errors.New("not a commit")

// emptyTree is the hash of the tree with no entries. git resolves it even
// when no such object was ever written.
var emptyTree = object.Hash(plumbing.ComputeHash(plumbing.TreeObject, nil))

// Repo is an object.Reader over a git repository.
type Repo struct {
	repo *git.Repository
}

var _ object.Reader = (*Repo)(nil)

// Open opens the repository at path. Both worktrees and bare repositories
// are accepted.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repo{repo: r}, nil
}

// New wraps an already opened go-git repository.
func New(r *git.Repository) *Repo {
	return &Repo{repo: r}
}

// ReadCommit reads commit metadata.
func (r *Repo) ReadCommit(h object.Hash) (*object.Commit, error) {
	c, err := r.repo.CommitObject(plumbing.Hash(h))
	if err != nil {
		return nil, readError("commit", h, err)
	}
	parents := make([]object.Hash, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, object.Hash(p))
	}
	return &object.Commit{
		Hash:      h,
		TreeHash:  object.Hash(c.TreeHash),
		Parents:   parents,
		Author:    signature(c.Author),
		Committer: signature(c.Committer),
		Message:   []byte(c.Message),
	}, nil
}

// ReadTree reads a tree's entries in repository order.
func (r *Repo) ReadTree(h object.Hash) (*object.Tree, error) {
	t, err := r.repo.TreeObject(plumbing.Hash(h))
	if errors.Is(err, plumbing.ErrObjectNotFound) && h == emptyTree {
		return &object.Tree{Hash: h}, nil
	}
	if err != nil {
		return nil, readError("tree", h, err)
	}
	entries := make([]object.TreeEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, object.TreeEntry{
			Name: []byte(e.Name),
			Kind: kindOf(e.Mode),
			Hash: object.Hash(e.Hash),
		})
	}
	return &object.Tree{Hash: h, Entries: entries}, nil
}

// ReadBlob returns a blob's raw content.
func (r *Repo) ReadBlob(h object.Hash) ([]byte, error) {
	b, err := r.repo.BlobObject(plumbing.Hash(h))
	if err != nil {
		return nil, readError("blob", h, err)
	}
	rd, err := b.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return data, nil
}

// PeelCommit follows annotated tags from h until it reaches a commit.
func (r *Repo) PeelCommit(h object.Hash) (object.Hash, error) {
	start := h
	for {
		obj, err := r.repo.Object(plumbing.AnyObject, plumbing.Hash(h))
		if err != nil {
			return object.Hash{}, readError("object", h, err)
		}
		switch o := obj.(type) {
		case *gitobject.Commit:
			return h, nil
		case *gitobject.Tag:
			h = object.Hash(o.Target)
		default:
			return object.Hash{}, fmt.Errorf("peel %s: %s %s: %w", start, obj.Type(), h, ErrNotCommit)
		}
	}
}

// References lists references whose full names match pattern.
func (r *Repo) References(pattern string) ([]object.Reference, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer iter.Close()

	var refs []object.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !glob.Glob(pattern, name) {
			return nil
		}
		switch ref.Type() {
		case plumbing.HashReference:
			refs = append(refs, object.Reference{Name: name, Direct: true, Target: object.Hash(ref.Hash())})
		case plumbing.SymbolicReference:
			refs = append(refs, object.Reference{Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	return refs, nil
}

func readError(what string, h object.Hash, err error) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("read %s %s: %w", what, h, ErrNotFound)
	}
	return fmt.Errorf("read %s %s: %w", what, h, err)
}

func signature(s gitobject.Signature) object.Signature {
	return object.Signature{
		Name:  []byte(s.Name),
		Email: []byte(s.Email),
		When:  s.When.Unix(),
	}
}

func kindOf(m filemode.FileMode) object.Kind {
	switch m {
	case filemode.Dir:
		return object.KindTree
	case filemode.Regular, filemode.Deprecated, filemode.Executable, filemode.Symlink:
		return object.KindBlob
	case filemode.Submodule:
		return object.KindCommit
	default:
		return object.KindUnknown
	}
}
