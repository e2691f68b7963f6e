package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// CheckNotReleased fails when any topic branch carries a previous release
// commit. Each branch's first-parent history is walked from its revision
// down to the first commit authored by upstreamAuthor, which is excluded.
func CheckNotReleased(ctx context.Context, h vcs.History, topics []*manifest.TopicBranch, upstreamAuthor, marker string) error {
	for _, t := range topics {
		rev := t.Revision()
		if rev == "" {
			return fmt.Errorf("%w: %s", ErrUnresolvedRev, t.Name)
		}
		var found string
		err := h.Walk(ctx, rev, func(c vcs.Commit) bool {
			if c.Author == upstreamAuthor {
				return false
			}
			if strings.Contains(c.Message, marker) {
				found = c.Hash
				return false
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("walking history of %s: %w", t.Name, err)
		}
		if found != "" {
			return &ReleasedError{Branch: t.Name, Commit: found}
		}
	}
	return nil
}

// HeadIsRelease reports whether the commit at rev is a release commit.
func HeadIsRelease(ctx context.Context, h vcs.History, rev, marker string) (bool, error) {
	var release bool
	err := h.Walk(ctx, rev, func(c vcs.Commit) bool {
		release = strings.Contains(c.Message, marker)
		return false
	})
	return release, err
}
