// Package gitrepotest builds small on-disk git repositories for tests.
package gitrepotest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"

	"github.com/odvcencio/histdb/pkg/object"
)

// Repo is a scratch repository with a worktree under t.TempDir().
type Repo struct {
	t    testing.TB
	Dir  string
	Git  *git.Repository
	tick int64
}

// New initializes an empty repository whose HEAD points at refs/heads/main.
func New(t testing.TB) *Repo {
	t.Helper()
	dir := t.TempDir()
	r, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.ReferenceName("refs/heads/main"))
	if err := r.Storer.SetReference(head); err != nil {
		t.Fatalf("SetReference(HEAD): %v", err)
	}
	return &Repo{t: t, Dir: dir, Git: r}
}

// WriteFile writes content at a slash-separated path in the worktree and
// stages it.
func (r *Repo) WriteFile(name, content string) {
	r.t.Helper()
	full := filepath.Join(r.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		r.t.Fatalf("MkdirAll(%s): %v", name, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		r.t.Fatalf("WriteFile(%s): %v", name, err)
	}
	w := r.worktree()
	if _, err := w.Add(name); err != nil {
		r.t.Fatalf("Add(%s): %v", name, err)
	}
}

// Remove deletes a path from the worktree and the index.
func (r *Repo) Remove(name string) {
	r.t.Helper()
	w := r.worktree()
	if _, err := w.Remove(name); err != nil {
		r.t.Fatalf("Remove(%s): %v", name, err)
	}
}

// Commit records the staged state on the current branch. Commit times
// advance by one minute per call so ordering is deterministic.
func (r *Repo) Commit(msg string) object.Hash {
	r.t.Helper()
	r.tick++
	sig := &gitobject.Signature{
		Name:  "Test Author",
		Email: "author@example.com",
		When:  time.Unix(1_700_000_000+r.tick*60, 0).UTC(),
	}
	h, err := r.worktree().Commit(msg, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		r.t.Fatalf("Commit(%q): %v", msg, err)
	}
	return object.Hash(h)
}

// SetRef points a direct reference at target.
func (r *Repo) SetRef(name string, target object.Hash) {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), plumbing.Hash(target))
	if err := r.Git.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("SetReference(%s): %v", name, err)
	}
}

// Tag creates an annotated tag refs/tags/name on target and returns the
// tag object's hash.
func (r *Repo) Tag(name string, target object.Hash) object.Hash {
	r.t.Helper()
	r.tick++
	ref, err := r.Git.CreateTag(name, plumbing.Hash(target), &git.CreateTagOptions{
		Tagger: &gitobject.Signature{
			Name:  "Test Author",
			Email: "author@example.com",
			When:  time.Unix(1_700_000_000+r.tick*60, 0).UTC(),
		},
		Message: name,
	})
	if err != nil {
		r.t.Fatalf("CreateTag(%s): %v", name, err)
	}
	return object.Hash(ref.Hash())
}

// SetSymbolicRef points a symbolic reference at another reference name.
func (r *Repo) SetSymbolicRef(name, target string) {
	r.t.Helper()
	ref := plumbing.NewSymbolicReference(plumbing.ReferenceName(name), plumbing.ReferenceName(target))
	if err := r.Git.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("SetReference(%s): %v", name, err)
	}
}

// DeleteRef removes a reference.
func (r *Repo) DeleteRef(name string) {
	r.t.Helper()
	if err := r.Git.Storer.RemoveReference(plumbing.ReferenceName(name)); err != nil {
		r.t.Fatalf("RemoveReference(%s): %v", name, err)
	}
}

// Checkout switches the worktree to commit h on a detached HEAD, keeping
// subsequent commits off every branch until SetRef is called.
func (r *Repo) Checkout(h object.Hash) {
	r.t.Helper()
	if err := r.worktree().Checkout(&git.CheckoutOptions{Hash: plumbing.Hash(h), Force: true}); err != nil {
		r.t.Fatalf("Checkout(%s): %v", h, err)
	}
}

// TreeOf returns the root tree hash of commit h.
func (r *Repo) TreeOf(h object.Hash) object.Hash {
	r.t.Helper()
	c, err := r.Git.CommitObject(plumbing.Hash(h))
	if err != nil {
		r.t.Fatalf("CommitObject(%s): %v", h, err)
	}
	return object.Hash(c.TreeHash)
}

// BlobHash returns the git blob hash of content.
func BlobHash(content string) object.Hash {
	return object.Hash(plumbing.ComputeHash(plumbing.BlobObject, []byte(content)))
}

func (r *Repo) worktree() *git.Worktree {
	r.t.Helper()
	w, err := r.Git.Worktree()
	if err != nil {
		r.t.Fatalf("Worktree: %v", err)
	}
	return w
}
