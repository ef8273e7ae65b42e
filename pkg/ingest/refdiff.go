package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/ryanuber/go-glob"

	"github.com/odvcencio/histdb/pkg/object"
)

// DefaultRefGlob selects local branches.
const DefaultRefGlob = "refs/heads/*"

// RefDiff is a reference whose live target differs from the recorded one.
// Old is nil for a reference seen for the first time.
type RefDiff struct {
	Name string
	Old  *object.Hash
	New  *object.Hash
}

func (d RefDiff) String() string {
	old := "none"
	if d.Old != nil {
		old = d.Old.Short()
	}
	nu := "none"
	if d.New != nil {
		nu = d.New.Short()
	}
	return fmt.Sprintf("%s %s..%s", d.Name, old, nu)
}

// RefState reads the last recorded reference targets of a repository.
type RefState interface {
	RecordedRefs(ctx context.Context, repoID int64) (map[string]object.Hash, error)
}

// RefChanges is the result of DiffRefs.
type RefChanges struct {
	// Changed holds live direct references that are new or moved, sorted
	// by name.
	Changed []RefDiff
	// Deleted names recorded references matching the glob that are no
	// longer live. They produce no diff rows.
	Deleted []string
}

// DiffRefs compares the live direct references matching pattern against
// the targets recorded for repoID. Symbolic references are skipped.
func DiffRefs(ctx context.Context, reader object.Reader, state RefState, repoID int64, pattern string) (RefChanges, error) {
	refs, err := reader.References(pattern)
	if err != nil {
		return RefChanges{}, fmt.Errorf("diff refs: %w", err)
	}
	live := make(map[string]object.Hash, len(refs))
	for _, r := range refs {
		if r.Direct {
			live[r.Name] = r.Target
		}
	}
	recorded, err := state.RecordedRefs(ctx, repoID)
	if err != nil {
		return RefChanges{}, fmt.Errorf("diff refs: %w", err)
	}

	var out RefChanges
	for name, target := range live {
		d := RefDiff{Name: name, New: &target}
		if old, ok := recorded[name]; ok {
			if old == target {
				continue
			}
			d.Old = &old
		}
		out.Changed = append(out.Changed, d)
	}
	for name := range recorded {
		if _, ok := live[name]; ok {
			continue
		}
		if glob.Glob(pattern, name) {
			out.Deleted = append(out.Deleted, name)
		}
	}
	sort.Slice(out.Changed, func(i, j int) bool { return out.Changed[i].Name < out.Changed[j].Name })
	sort.Strings(out.Deleted)
	return out, nil
}
