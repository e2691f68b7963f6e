package merge

import (
	"errors"
	"fmt"

	gocid "github.com/ipfs/go-cid"
)

var (
	// ErrMergeConflict indicates a merge stopped on conflicts that rerere
	// could not resolve.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrAlreadyReleased indicates a topic branch already contains a
	// release commit and would re-merge a previous release.
	ErrAlreadyReleased = errors.New("branch contains a release commit")
	// ErrUnresolvedRev indicates a branch reached the merge engine without a
	// fixed revision.
	ErrUnresolvedRev = errors.New("branch has no resolved revision")
	// ErrUnknownPolicy indicates an unrecognized conflict policy name.
	ErrUnknownPolicy = errors.New("unknown conflict policy")
)

// ConflictError reports the branch a merge run halted on.
type ConflictError struct {
	Branch   string
	Rev      string
	Unmerged []string
	Snapshot gocid.Cid
	Err      error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("merge of %s at %s has failed", e.Branch, e.Rev)
	if len(e.Unmerged) > 0 {
		msg += fmt.Sprintf(" (%d unmerged path(s))", len(e.Unmerged))
	}
	if e.Snapshot.Defined() {
		msg += fmt.Sprintf("; conflict snapshot %s (mergetrain conflict %s)", e.Snapshot, e.Branch)
	}
	return msg + ". Check git status and the run log, resolve the conflicts, commit, then run 'mergetrain merge --continue'"
}

// Unwrap returns ErrMergeConflict and the underlying git error.
func (e *ConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMergeConflict}
	}
	return []error{ErrMergeConflict, e.Err}
}

// ReleasedError names the branch and commit of a previous release.
type ReleasedError struct {
	Branch string
	Commit string
}

func (e *ReleasedError) Error() string {
	return fmt.Sprintf("branch %s contains release commit %s", e.Branch, e.Commit)
}

func (e *ReleasedError) Unwrap() error {
	return ErrAlreadyReleased
}
