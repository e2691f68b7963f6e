package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// BaseBackend is what base setup needs from git.
type BaseBackend interface {
	vcs.Fetcher
	vcs.RefLister
	vcs.RefReader
}

// BaseOptions adjusts how the master revision is chosen.
type BaseOptions struct {
	// SkipFetch uses tags already known locally instead of fetching first.
	SkipFetch bool
	// BranchHead ignores use_latest_tag and merges onto the branch head.
	BranchHead bool
}

// SetupBase resolves the revision topic branches are merged onto and
// records it in m.Master. The latest version tag wins when use_latest_tag
// is set; a pinned stuck_at_ref comes next; otherwise the remote branch
// head is fetched and used.
func SetupBase(ctx context.Context, b BaseBackend, master *manifest.MasterBranch, opts BaseOptions) error {
	master.Tag = nil
	if opts.BranchHead {
		master.UseLatestTag = false
	}
	remote := master.Remote()

	var rev string
	switch {
	case master.UseLatestTag:
		if !opts.SkipFetch {
			if err := b.FetchRemote(ctx, remote); err != nil {
				return fmt.Errorf("fetching %s: %w", remote, err)
			}
		}
		refs, err := b.LsRemoteTags(ctx, remote)
		if err != nil {
			return fmt.Errorf("listing tags on %s: %w", remote, err)
		}
		tag, err := LatestTag(refs)
		if err != nil {
			return fmt.Errorf("%s: %w", remote, err)
		}
		master.Tag = &tag
		if rev, err = b.RevList(ctx, tag); err != nil {
			return fmt.Errorf("resolving tag %s: %w", tag, err)
		}
	case master.StuckAtRef != "":
		rev = master.StuckAtRef
	default:
		if err := b.FetchRemote(ctx, remote); err != nil {
			return fmt.Errorf("fetching %s: %w", remote, err)
		}
		var err error
		if rev, err = b.RevList(ctx, remote+"/"+master.Branch); err != nil {
			return fmt.Errorf("resolving %s/%s: %w", remote, master.Branch, err)
		}
	}
	master.Rev = &rev
	return nil
}

// LatestTag returns the highest semantic version among tag refs. Peeled
// entries and tags that do not parse as versions are ignored.
func LatestTag(refs []vcs.Ref) (string, error) {
	var (
		best    *semver.Version
		bestTag string
	)
	for _, r := range refs {
		name := strings.TrimSuffix(strings.TrimPrefix(r.Name, "refs/tags/"), "^{}")
		v, err := semver.NewVersion(name)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestTag = v, name
		}
	}
	if best == nil {
		return "", ErrNoTags
	}
	return bestTag, nil
}
