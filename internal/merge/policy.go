package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// ConflictPolicy decides whether a failed merge was fully resolved by rerere.
type ConflictPolicy string

const (
	// PolicyTrustEmptyRerere treats an empty `git rerere status` as resolved.
	PolicyTrustEmptyRerere ConflictPolicy = "trust-empty-rerere"
	// PolicyStrict additionally requires that no path is left unmerged.
	PolicyStrict ConflictPolicy = "strict"
)

// ParsePolicy parses a policy name. The empty string selects the default.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.TrimSpace(s)) {
	case "", PolicyTrustEmptyRerere:
		return PolicyTrustEmptyRerere, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownPolicy, s, PolicyTrustEmptyRerere, PolicyStrict)
}

// resolution is the outcome of inspecting a failed merge.
type resolution struct {
	resolved bool
	rerere   string
	unmerged []string
}

// inspect examines the index after a failed merge.
func (p ConflictPolicy) inspect(ctx context.Context, git vcs.Merger) (resolution, error) {
	var res resolution
	status, err := git.RerereStatus(ctx)
	if err != nil {
		return res, fmt.Errorf("git rerere status: %w", err)
	}
	res.rerere = status
	unmerged, err := git.UnmergedPaths(ctx)
	if err != nil {
		return res, fmt.Errorf("listing unmerged paths: %w", err)
	}
	res.unmerged = unmerged

	res.resolved = strings.TrimSpace(status) == ""
	if p == PolicyStrict && len(unmerged) > 0 {
		res.resolved = false
	}
	return res, nil
}
