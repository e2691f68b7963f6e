// Package reconcile decides which remote branches are stale relative to the
// local tracking refs, fetches only what changed and fixes the revision each
// branch is merged at for the rest of the run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// DefaultWorkers bounds concurrent ls-remote calls when none is configured.
const DefaultWorkers = 8

var (
	// ErrRefNotFound indicates the remote does not carry the configured branch.
	ErrRefNotFound = errors.New("ref not found on remote")
	// ErrUnresolved indicates no revision could be determined for a branch.
	ErrUnresolved = errors.New("revision could not be resolved")
	// ErrNoTags indicates the master remote has no version tags.
	ErrNoTags = errors.New("no version tags on remote")
)

// RevisionMap maps a branch key to the revision found on its remote.
type RevisionMap map[manifest.Key]string

// TrackingMap maps a branch key to its local tracking revision; nil means
// the branch was never fetched.
type TrackingMap map[manifest.Key]*string

// Failures maps a branch key to the error that prevented its resolution.
type Failures map[manifest.Key]error

// Resolver queries remote heads for topic branches.
type Resolver struct {
	Remotes vcs.RemoteRegistry
	Refs    vcs.RefLister
	// Workers bounds concurrent remote queries; <= 0 uses DefaultWorkers.
	Workers int
	Log     *zap.Logger
}

func (r *Resolver) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// RegisterRemotes makes sure every enabled branch, master included, has a
// git remote named after its sanitized URL. Existing remotes are repointed
// at the manifest URL. It returns the names that were newly added.
func (r *Resolver) RegisterRemotes(ctx context.Context, m *manifest.Manifest) ([]string, error) {
	existing, err := r.Remotes.Remotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing remotes: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	urls := make([]string, 0, len(m.Topics)+1)
	if m.Master.Enabled {
		urls = append(urls, m.Master.RepoURL)
	}
	for _, t := range m.Enabled() {
		urls = append(urls, t.RepoURL)
	}

	var added []string
	done := make(map[string]bool)
	for _, url := range urls {
		name := manifest.SanitizeRemoteName(url)
		if done[name] {
			continue
		}
		done[name] = true
		if have[name] {
			if err := r.Remotes.SetRemoteURL(ctx, name, url); err != nil {
				return added, fmt.Errorf("updating remote %s: %w", name, err)
			}
			continue
		}
		r.logger().Info("adding remote", zap.String("remote", name), zap.String("url", url))
		if err := r.Remotes.AddRemote(ctx, name, url); err != nil {
			return added, fmt.Errorf("adding remote %s: %w", name, err)
		}
		added = append(added, name)
	}
	return added, nil
}

// Resolve returns the current remote head of every topic branch. Pinned
// branches resolve to their stuck_at_ref without touching the network.
// The others are queried concurrently; a failed query is recorded in the
// returned Failures and does not stop the rest.
func (r *Resolver) Resolve(ctx context.Context, topics []*manifest.TopicBranch) (RevisionMap, Failures) {
	revs := make(RevisionMap, len(topics))
	failures := make(Failures)

	var pending []*manifest.TopicBranch
	for _, t := range topics {
		if t.Pinned() {
			revs[t.Key()] = t.StuckAtRef
			continue
		}
		pending = append(pending, t)
	}

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(workers)
	for _, t := range pending {
		key, remote, branch := t.Key(), t.Remote(), t.Branch
		g.Go(func() error {
			sha, err := r.resolveOne(ctx, remote, branch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[key] = err
				return nil
			}
			revs[key] = sha
			return nil
		})
	}
	_ = g.Wait()

	for key, err := range failures {
		r.logger().Warn("remote resolution failed", zap.String("branch", string(key)), zap.Error(err))
	}
	return revs, failures
}

func (r *Resolver) resolveOne(ctx context.Context, remote, branch string) (string, error) {
	ref := "refs/heads/" + branch
	refs, err := r.Refs.LsRemote(ctx, remote, ref)
	if err != nil {
		return "", fmt.Errorf("ls-remote %s %s: %w", remote, ref, err)
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("%w: %s %s", ErrRefNotFound, remote, ref)
	}
	return refs[0].Hash, nil
}

// LocalTracking reads the local tracking revision for every topic branch.
// A pinned branch whose pinned commit is already present locally reports
// the pin, so it is not refetched on every run.
func LocalTracking(ctx context.Context, refs vcs.RefReader, topics []*manifest.TopicBranch) (TrackingMap, error) {
	local := make(TrackingMap, len(topics))
	for _, t := range topics {
		key := t.Key()
		if t.Pinned() && refs.HasCommit(ctx, t.StuckAtRef) {
			pin := t.StuckAtRef
			local[key] = &pin
			continue
		}
		hash, ok, err := refs.ResolveRef(ctx, key.TrackingRef())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key.TrackingRef(), err)
		}
		if ok {
			local[key] = &hash
		} else {
			local[key] = nil
		}
	}
	return local, nil
}

// AssignRevisions fixes the revision of each topic branch: the pin for
// pinned branches, otherwise the resolved remote head, falling back to the
// local tracking ref. Branches with neither fail with ErrUnresolved, carrying
// the resolution failure when there was one.
func AssignRevisions(topics []*manifest.TopicBranch, remote RevisionMap, local TrackingMap, failures Failures) error {
	var errs []error
	for _, t := range topics {
		key := t.Key()
		var rev string
		switch {
		case t.Pinned():
			rev = t.StuckAtRef
		case remote[key] != "":
			rev = remote[key]
		case local[key] != nil:
			rev = *local[key]
		default:
			if cause := failures[key]; cause != nil {
				errs = append(errs, fmt.Errorf("%w: %s (%s): %w", ErrUnresolved, t.Name, key, cause))
			} else {
				errs = append(errs, fmt.Errorf("%w: %s (%s)", ErrUnresolved, t.Name, key))
			}
			continue
		}
		if err := t.SetRev(rev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
