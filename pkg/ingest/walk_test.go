package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/histdb/pkg/object"
)

// linear builds a <- b <- c with increasing commit times.
func linear(r *memRepo) (a, b, c object.Hash) {
	empty := r.tree("empty")
	a = r.commit("a", 100, empty)
	b = r.commit("b", 200, empty, a)
	c = r.commit("c", 300, empty, b)
	return a, b, c
}

func TestWalkRangeExcludesOldTarget(t *testing.T) {
	r := newMemRepo()
	a, b, c := linear(r)

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", Old: hashPtr(a), New: hashPtr(c)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{b, c}, got); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkFirstRunTakesWholeHistoryParentsFirst(t *testing.T) {
	r := newMemRepo()
	a, b, c := linear(r)

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", New: hashPtr(c)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{a, b, c}, got); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkNoContribution(t *testing.T) {
	r := newMemRepo()
	_, b, _ := linear(r)

	tests := []struct {
		name string
		diff RefDiff
	}{
		{name: "both absent", diff: RefDiff{Name: "refs/heads/x"}},
		{name: "unchanged", diff: RefDiff{Name: "refs/heads/x", Old: hashPtr(b), New: hashPtr(b)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{tt.diff})
			if err != nil {
				t.Fatalf("Walk: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Walk = %v, want empty", got)
			}
		})
	}
}

func TestWalkExclusionIsJointAcrossRefs(t *testing.T) {
	r := newMemRepo()
	a, b, c := linear(r)
	d := r.commit("d", 400, r.tree("empty"), b)

	// main is new; feature moved from b to d. b's ancestry is excluded for
	// main as well.
	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/feature", Old: hashPtr(b), New: hashPtr(d)},
		{Name: "refs/heads/main", New: hashPtr(c)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	seen := make(map[object.Hash]bool)
	for _, h := range got {
		seen[h] = true
	}
	if len(got) != 2 || !seen[c] || !seen[d] {
		t.Errorf("Walk = %v, want exactly {c, d}", got)
	}
	if seen[a] || seen[b] {
		t.Errorf("Walk included an ancestor of an old target: %v", got)
	}
}

func TestWalkMergeIsTopological(t *testing.T) {
	r := newMemRepo()
	empty := r.tree("empty")
	root := r.commit("root", 100, empty)
	left := r.commit("left", 200, empty, root)
	right := r.commit("right", 250, empty, root)
	left2 := r.commit("left2", 300, empty, left)
	merge := r.commit("merge", 400, empty, left2, right)

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", New: hashPtr(merge)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len(Walk) = %d, want 5", len(got))
	}
	pos := make(map[object.Hash]int)
	for i, h := range got {
		if _, dup := pos[h]; dup {
			t.Fatalf("commit %s emitted twice", h)
		}
		pos[h] = i
	}
	for h, i := range pos {
		for _, p := range r.commits[h].Parents {
			if pos[p] >= i {
				t.Errorf("parent %s at %d not before child %s at %d", p, pos[p], h, i)
			}
		}
	}
	if got[0] != root || got[4] != merge {
		t.Errorf("Walk = %v, want root first and merge last", got)
	}
}

func TestWalkMergeOfOldTarget(t *testing.T) {
	r := newMemRepo()
	empty := r.tree("empty")
	root := r.commit("root", 100, empty)
	side := r.commit("side", 200, empty, root)
	main := r.commit("main", 300, empty, root)
	merge := r.commit("merge", 400, empty, main, side)

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", Old: hashPtr(main), New: hashPtr(merge)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{side, merge}, got); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

// An uninteresting chain stamped older than a shared ancestor still reaches
// it while timestamps hold level. A chain whose clock keeps falling for more
// than walkSlop commits can end the walk early and leak that ancestor, which
// an earlier run has already stored.
func TestWalkSkewedClockStillExcludes(t *testing.T) {
	r := newMemRepo()
	empty := r.tree("empty")
	// old's committer clock ran behind: its own parent looks newer.
	base := r.commit("base", 500, empty)
	old := r.commit("old", 100, empty, base)
	tip := r.commit("tip", 600, empty, old)

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", Old: hashPtr(old), New: hashPtr(tip)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{tip}, got); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkPeelsAnnotatedTags(t *testing.T) {
	r := newMemRepo()
	a, b, c := linear(r)
	oldTag := r.tag("v1", a)
	newTag := r.tag("v2-outer", r.tag("v2", c))

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/tags/release", Old: hashPtr(oldTag), New: hashPtr(newTag)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{b, c}, got); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkLongSkewedChainStillExcludes(t *testing.T) {
	r := newMemRepo()
	empty := r.tree("empty")
	base := r.commit("base", 100, empty)
	old := base
	for i := 0; i < 10; i++ {
		old = r.commit(fmt.Sprintf("old%d", i), 10, empty, old)
	}
	tip := r.commit("tip", 300, empty, base)

	got, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", Old: hashPtr(old), New: hashPtr(tip)},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{tip}, got); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkStepLimit(t *testing.T) {
	r := newMemRepo()
	_, _, c := linear(r)

	_, err := NewWalker(r, 2).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", New: hashPtr(c)},
	})
	if !errors.Is(err, ErrWalkLimit) {
		t.Fatalf("Walk error = %v, want ErrWalkLimit", err)
	}
}

func TestWalkMissingCommit(t *testing.T) {
	r := newMemRepo()
	missing := hashOf("nowhere")

	_, err := NewWalker(r, 0).Walk(context.Background(), []RefDiff{
		{Name: "refs/heads/main", New: hashPtr(missing)},
	})
	if !errors.Is(err, errMissing) {
		t.Fatalf("Walk error = %v, want errMissing", err)
	}
}
