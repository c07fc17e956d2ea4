// Package rebase implements branch rebase (spec.md §4.6): replaying one
// branch's commits onto another, skipping commits whose effect is
// already present verbatim on the target branch (an "ordinary commit
// identity skip"). This is independent of the interval engine — it
// operates purely on an abstract commit graph, the way the causal-tree
// CRDTs in the retrieval pack trace an atom back through its Cause
// chain rather than by raw sequence position.
package rebase

import "github.com/pkg/errors"

// Commit is a single node in a commit graph: an opaque id, a revision
// tag used to detect identity with a commit on another branch, and the
// id of its parent.
type Commit struct {
	ID          string
	RevisionTag string
	Parent      string
}

// CommitGraph is the minimal surface RebaseBranch needs from a
// commit-graph store.
type CommitGraph interface {
	// Ancestors returns the path from (excluding) base to (including)
	// tip, oldest first. base must be a proper ancestor of tip (or tip
	// itself, yielding an empty path).
	Ancestors(base, tip string) ([]Commit, error)
}

// Rebaser applies one source commit's operation onto the current tip of
// the rebased path, returning the new, rebased commit.
type Rebaser func(onto Commit, source Commit) (Commit, error)

// Result is the outcome of rebasing a source branch onto a target
// commit (spec.md §4.6 scenario: "rebase branch identity skip").
type Result struct {
	// DeletedSourceCommits lists every commit id on the original source
	// path, in order — all of it is superseded by NewSourceCommits.
	DeletedSourceCommits []string
	// NewSourceCommits is the target path (verbatim) followed by each
	// non-skipped source commit, rebased.
	NewSourceCommits []string
}

// RebaseBranch walks source's commits from base to sourceTip and
// replays them onto targetTip. A source commit is dropped (identity
// skip) if its RevisionTag already appears among target's commits from
// base to targetTip — its effect is already present there, verbatim.
// Every other source commit is rebased via rebaser, chained onto the
// previous rebased commit (or onto targetTip for the first one).
func RebaseBranch(graph CommitGraph, base, sourceTip, targetTip string, rebaser Rebaser) (Result, error) {
	sourcePath, err := graph.Ancestors(base, sourceTip)
	if err != nil {
		return Result{}, errors.Wrapf(err, "rebase branch: ancestors(%s, %s)", base, sourceTip)
	}
	targetPath, err := graph.Ancestors(base, targetTip)
	if err != nil {
		return Result{}, errors.Wrapf(err, "rebase branch: ancestors(%s, %s)", base, targetTip)
	}

	targetTags := make(map[string]Commit, len(targetPath))
	for _, c := range targetPath {
		targetTags[c.RevisionTag] = c
	}

	var result Result
	onto := Commit{ID: targetTip}
	for _, c := range targetPath {
		result.NewSourceCommits = append(result.NewSourceCommits, c.ID)
		onto = c
	}

	for _, c := range sourcePath {
		result.DeletedSourceCommits = append(result.DeletedSourceCommits, c.ID)
		if _, skip := targetTags[c.RevisionTag]; skip {
			continue
		}
		next, err := rebaser(onto, c)
		if err != nil {
			return Result{}, err
		}
		onto = next
		result.NewSourceCommits = append(result.NewSourceCommits, next.ID)
	}
	return result, nil
}
