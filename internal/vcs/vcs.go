// Package vcs defines the version-control capabilities the merge train
// needs and implements them with the git CLI. Each capability is a small
// interface so components depend only on what they use and tests can
// substitute in-memory fakes.
package vcs

import (
	"context"
	"fmt"
	"strings"
)

// Ref is a named object id as reported by ls-remote.
type Ref struct {
	Name string
	Hash string
}

// Commit is one entry of a first-parent history walk.
type Commit struct {
	Hash    string
	Author  string
	Message string
}

// RemoteRegistry registers remotes by name.
type RemoteRegistry interface {
	// Remotes lists the names of configured remotes.
	Remotes(ctx context.Context) ([]string, error)
	// AddRemote registers a new remote.
	AddRemote(ctx context.Context, name, url string) error
	// SetRemoteURL repoints an existing remote.
	SetRemoteURL(ctx context.Context, name, url string) error
}

// RefLister queries a remote's refs over the network.
type RefLister interface {
	// LsRemote returns refs on remote whose name is exactly ref.
	LsRemote(ctx context.Context, remote, ref string) ([]Ref, error)
	// LsRemoteTags returns every tag ref on remote, peeled entries included.
	LsRemoteTags(ctx context.Context, remote string) ([]Ref, error)
}

// Fetcher downloads objects from remotes.
type Fetcher interface {
	// Fetch fetches all given remotes in one invocation.
	Fetch(ctx context.Context, remotes ...string) error
	// FetchRemote fetches a single remote with --prune --force.
	FetchRemote(ctx context.Context, remote string) error
}

// RefReader reads local refs and objects.
type RefReader interface {
	// ResolveRef returns the commit a local ref points at. ok is false when
	// the ref does not exist.
	ResolveRef(ctx context.Context, ref string) (hash string, ok bool, err error)
	// HasCommit reports whether rev names a commit present locally.
	HasCommit(ctx context.Context, rev string) bool
	// RevList returns the newest commit reachable from rev.
	RevList(ctx context.Context, rev string) (string, error)
	// Describe runs git describe on rev.
	Describe(ctx context.Context, rev string) (string, error)
}

// Worktree resets the checkout the merge runs in.
type Worktree interface {
	CheckoutForce(ctx context.Context, branch string) error
	ResetHard(ctx context.Context, rev string) error
}

// Merger performs merges and inspects conflict state.
type Merger interface {
	// Merge merges rev into HEAD with --no-ff --rerere-autoupdate --log.
	Merge(ctx context.Context, rev, message string) error
	// RerereStatus returns `git rerere status`; empty means rerere has
	// nothing left to record.
	RerereStatus(ctx context.Context) (string, error)
	// UnmergedPaths lists paths still marked as conflicted in the index.
	UnmergedPaths(ctx context.Context) ([]string, error)
	// DiffStatCached returns the staged diffstat.
	DiffStatCached(ctx context.Context) (string, error)
	// CommitNoEdit concludes an in-progress merge with its prepared message.
	CommitNoEdit(ctx context.Context) error
	// Status returns `git status` output.
	Status(ctx context.Context) (string, error)
	// Diff returns the working tree diff.
	Diff(ctx context.Context) (string, error)
}

// Committer stages and commits files.
type Committer interface {
	Add(ctx context.Context, paths ...string) error
	// Commit creates a signed-off commit with message.
	Commit(ctx context.Context, message string) error
	// Changed reports whether path is untracked or differs from the index.
	Changed(ctx context.Context, path string) (bool, error)
}

// History walks commit ancestry.
type History interface {
	// Walk visits first-parent ancestors of rev, newest first, until fn
	// returns false or the root is reached.
	Walk(ctx context.Context, rev string, fn func(Commit) bool) error
}

// Backend is the full capability set used by the merge commands.
type Backend interface {
	RemoteRegistry
	RefLister
	Fetcher
	RefReader
	Worktree
	Merger
	Committer
	History
}

// CommandError records a failed external command with its captured output.
type CommandError struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Error returns the command line, trimmed stderr and the underlying error.
func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	return fmt.Sprintf("git %s: %s: %v", strings.Join(e.Args, " "), msg, e.Err)
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
