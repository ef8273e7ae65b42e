package ingest

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/histdb/pkg/object"
)

// DefaultMaxWalkSteps bounds how many commits one walk may visit.
const DefaultMaxWalkSteps = 10_000_000

// walkSlop is how many more commits the walk pops once nothing interesting
// is left in the queue and the queue head is older than the last pop.
// Commits whose committer clock ran behind their parents can still be
// reached as uninteresting within this window.
const walkSlop = 5

// ErrWalkLimit is returned when a walk visits more commits than allowed.
var ErrWalkLimit = errors.New("commit walk exceeded step limit")

type walkNode struct {
	hash    object.Hash
	time    int64
	parents []object.Hash

	uninteresting bool
	queued        bool
	inQueue       bool

	// popped is the 1-based position at which the walk popped the node.
	popped int

	// Topological sort state.
	emit     bool
	children int
}

// Walker computes which commits a set of reference moves introduced.
type Walker struct {
	reader   object.Reader
	maxSteps int
}

// NewWalker returns a Walker reading commits through reader. maxSteps <= 0
// selects DefaultMaxWalkSteps.
func NewWalker(reader object.Reader, maxSteps int) *Walker {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxWalkSteps
	}
	return &Walker{reader: reader, maxSteps: maxSteps}
}

type walkState struct {
	w     *Walker
	nodes map[object.Hash]*walkNode
	queue walkMaxHeap

	interestingQueued int
	steps             int
}

// Walk returns every commit reachable from some diff's New target and from
// no diff's Old target, each once, parents before children. Old targets
// exclude their ancestry for all diffs, not only their own. Targets that
// name annotated tags stand for the commits they peel to.
func (w *Walker) Walk(ctx context.Context, diffs []RefDiff) ([]object.Hash, error) {
	s := &walkState{w: w, nodes: make(map[object.Hash]*walkNode)}

	for _, d := range diffs {
		if d.New == nil {
			continue
		}
		if err := s.push(*d.New, false); err != nil {
			return nil, err
		}
	}
	for _, d := range diffs {
		if d.Old == nil {
			continue
		}
		if err := s.push(*d.Old, true); err != nil {
			return nil, err
		}
	}

	candidates, err := s.limit(ctx)
	if err != nil {
		return nil, err
	}
	return topoSort(s.nodes, candidates), nil
}

// limit pops commits newest first, spreading uninteresting marks to
// parents, and returns the interesting commits in pop order.
func (s *walkState) limit(ctx context.Context) ([]*walkNode, error) {
	var candidates []*walkNode
	slop := walkSlop
	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := heap.Pop(&s.queue).(*walkNode)
		n.inQueue = false
		if !n.uninteresting {
			s.interestingQueued--
		}
		s.steps++
		if s.steps > s.w.maxSteps {
			return nil, fmt.Errorf("walk commits: %w (%d)", ErrWalkLimit, s.w.maxSteps)
		}
		n.popped = s.steps

		for _, p := range n.parents {
			pn, err := s.load(p)
			if err != nil {
				return nil, err
			}
			if n.uninteresting {
				s.markUninteresting(pn)
			}
			if !pn.queued {
				s.enqueue(pn)
			}
		}

		if n.uninteresting {
			if s.interestingQueued > 0 || (s.queue.Len() > 0 && s.queue[0].time >= n.time) {
				slop = walkSlop
				continue
			}
			slop--
			if slop == 0 {
				break
			}
			continue
		}
		candidates = append(candidates, n)
	}
	return candidates, nil
}

// push seeds the walk with a reference target, peeled to its commit.
func (s *walkState) push(target object.Hash, uninteresting bool) error {
	h, err := s.w.reader.PeelCommit(target)
	if err != nil {
		return fmt.Errorf("walk commits: %w", err)
	}
	n, err := s.load(h)
	if err != nil {
		return err
	}
	if uninteresting {
		s.markUninteresting(n)
	}
	if !n.queued {
		s.enqueue(n)
	}
	return nil
}

func (s *walkState) load(h object.Hash) (*walkNode, error) {
	if n, ok := s.nodes[h]; ok {
		return n, nil
	}
	c, err := s.w.reader.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("walk commits: %w", err)
	}
	n := &walkNode{hash: h, time: c.Committer.When, parents: c.Parents}
	s.nodes[h] = n
	return n, nil
}

func (s *walkState) enqueue(n *walkNode) {
	n.queued = true
	n.inQueue = true
	if !n.uninteresting {
		s.interestingQueued++
	}
	heap.Push(&s.queue, n)
}

// markUninteresting marks n and every already loaded ancestor.
func (s *walkState) markUninteresting(n *walkNode) {
	stack := []*walkNode{n}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if m.uninteresting {
			continue
		}
		m.uninteresting = true
		if m.inQueue {
			s.interestingQueued--
		}
		for _, p := range m.parents {
			if pn, ok := s.nodes[p]; ok {
				stack = append(stack, pn)
			}
		}
	}
}

// topoSort orders the surviving candidates parents first. Ties follow the
// reverse of the walk's pop order, so older commits lead.
func topoSort(nodes map[object.Hash]*walkNode, candidates []*walkNode) []object.Hash {
	var kept []*walkNode
	for _, n := range candidates {
		if n.uninteresting {
			continue
		}
		n.emit = true
		kept = append(kept, n)
	}
	for _, n := range kept {
		for _, p := range n.parents {
			if pn, ok := nodes[p]; ok && pn.emit {
				pn.children++
			}
		}
	}

	// Emit children first, then reverse.
	ready := make(readyHeap, 0, len(kept))
	for _, n := range kept {
		if n.children == 0 {
			ready = append(ready, n)
		}
	}
	heap.Init(&ready)
	out := make([]object.Hash, 0, len(kept))
	for ready.Len() > 0 {
		n := heap.Pop(&ready).(*walkNode)
		out = append(out, n.hash)
		for _, p := range n.parents {
			pn, ok := nodes[p]
			if !ok || !pn.emit {
				continue
			}
			pn.children--
			if pn.children == 0 {
				heap.Push(&ready, pn)
			}
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
