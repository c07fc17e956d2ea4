package rebase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGraph is a minimal in-memory CommitGraph keyed by commit id.
type fakeGraph struct {
	byID map[string]Commit
}

func newFakeGraph(commits ...Commit) *fakeGraph {
	g := &fakeGraph{byID: make(map[string]Commit, len(commits))}
	for _, c := range commits {
		g.byID[c.ID] = c
	}
	return g
}

func (g *fakeGraph) Ancestors(base, tip string) ([]Commit, error) {
	if tip == base {
		return nil, nil
	}
	var path []Commit
	cur := tip
	for {
		c, ok := g.byID[cur]
		if !ok {
			return nil, fmt.Errorf("fakeGraph: unknown commit %q", cur)
		}
		path = append([]Commit{c}, path...)
		if c.Parent == base {
			return path, nil
		}
		if c.Parent == "" {
			return nil, fmt.Errorf("fakeGraph: %q never reaches base %q", tip, base)
		}
		cur = c.Parent
	}
}

// TestRebaseBranchIdentitySkip encodes spec.md §8 scenario 6: a source
// path sharing revision tags with a prefix of the target path is
// advanced over (identity-skipped) rather than re-rebased, and only the
// genuinely novel source commit gets a fresh rebased id.
func TestRebaseBranchIdentitySkip(t *testing.T) {
	graph := newFakeGraph(
		Commit{ID: "2", RevisionTag: "rt2", Parent: "base"},
		Commit{ID: "3", RevisionTag: "rt3", Parent: "2"},
		Commit{ID: "4", RevisionTag: "rt4", Parent: "3"},
		Commit{ID: "2p", RevisionTag: "rt2", Parent: "base"},
		Commit{ID: "3p", RevisionTag: "rt3", Parent: "2p"},
		Commit{ID: "5", RevisionTag: "rt5", Parent: "3p"},
	)

	rebaser := func(onto, source Commit) (Commit, error) {
		return Commit{ID: source.ID + "'", RevisionTag: source.RevisionTag + "-rebased", Parent: onto.ID}, nil
	}

	result, err := RebaseBranch(graph, "base", "5", "4", rebaser)
	require.NoError(t, err)
	require.Equal(t, []string{"2p", "3p", "5"}, result.DeletedSourceCommits)
	require.Equal(t, []string{"2", "3", "4", "5'"}, result.NewSourceCommits)
}

// TestRebaseBranchNoopWhenEverySourceTagIsOnTarget covers the case
// where the source path shares every revision tag with the target path
// up to and including its own tip: every source commit is identity
// skipped and the rebaser is never invoked.
func TestRebaseBranchNoopWhenEverySourceTagIsOnTarget(t *testing.T) {
	graph := newFakeGraph(
		Commit{ID: "2", RevisionTag: "rt2", Parent: "base"},
		Commit{ID: "3", RevisionTag: "rt3", Parent: "2"},
		Commit{ID: "2p", RevisionTag: "rt2", Parent: "base"},
	)

	called := false
	rebaser := func(onto, source Commit) (Commit, error) {
		called = true
		return Commit{}, nil
	}

	result, err := RebaseBranch(graph, "base", "2p", "3", rebaser)
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, []string{"2p"}, result.DeletedSourceCommits)
	require.Equal(t, []string{"2", "3"}, result.NewSourceCommits)
}
