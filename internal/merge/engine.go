// Package merge drives the ordered, resumable merge of topic branches onto
// the base revision. Each branch is merged exactly once per run in manifest
// order; conflicts are first offered to git rerere, and a run that cannot
// proceed halts with enough recorded state to be continued later.
package merge

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/papapumpkin/mergetrain/internal/conflict"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/telemetry"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// State is the lifecycle position of a merge run.
type State int

const (
	StateNotStarted State = iota
	StateMerging
	StateHalted
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateMerging:
		return "merging"
	case StateHalted:
		return "halted"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Backend is what the engine needs from git.
type Backend interface {
	vcs.Worktree
	vcs.Merger
}

// Reporter receives operator-facing progress. *ui.Printer implements it.
type Reporter interface {
	Merging(name, repoURL, branch, rev string)
	Skipping(name string)
	RerereResolved(name string)
	Halted(name string, err error)
}

type nopReporter struct{}

func (nopReporter) Merging(string, string, string, string) {}
func (nopReporter) Skipping(string)                        {}
func (nopReporter) RerereResolved(string)                  {}
func (nopReporter) Halted(string, error)                   {}

// Options configures a single run.
type Options struct {
	// Continue skips branches whose revision is in Recorded.
	Continue bool
	Recorded Recorded

	Branding    string
	JiraBaseURL string
	Policy      ConflictPolicy
}

// Result summarizes a run. Names are in manifest order.
type Result struct {
	State   State
	Merged  []string
	Skipped []string
}

// Engine merges topic branches one at a time.
type Engine struct {
	Git Backend
	// Patch receives one PatchLine per successful merge.
	Patch io.Writer
	// Snapshots stores conflict state on halt; nil disables snapshots.
	Snapshots *conflict.Store
	Telemetry *telemetry.Emitter
	Report    Reporter
	Log       *zap.Logger
	Now       func() time.Time

	state State
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return e.state
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Engine) reporter() Reporter {
	if e.Report == nil {
		return nopReporter{}
	}
	return e.Report
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}

// Reset force-checks-out workBranch and hard-resets it to the base revision.
func (e *Engine) Reset(ctx context.Context, workBranch string, master *manifest.MasterBranch) error {
	rev := master.Revision()
	if rev == "" {
		return fmt.Errorf("%w: master", ErrUnresolvedRev)
	}
	if err := e.Git.CheckoutForce(ctx, workBranch); err != nil {
		return fmt.Errorf("checking out %s: %w", workBranch, err)
	}
	target := rev
	if tag := master.TagName(); tag != "" {
		target = tag
	}
	e.logger().Info("resetting work branch", zap.String("branch", workBranch), zap.String("to", target))
	if err := e.Git.ResetHard(ctx, rev); err != nil {
		return fmt.Errorf("resetting %s to %s: %w", workBranch, target, err)
	}
	return nil
}

// Run merges topics in order. It returns a *ConflictError when a branch
// halts the run; every branch merged before the halt is already recorded
// in the patch-manifest.
func (e *Engine) Run(ctx context.Context, topics []*manifest.TopicBranch, opts Options) (Result, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyTrustEmptyRerere
	}
	e.state = StateMerging
	res := Result{State: e.state}

	for _, t := range topics {
		if err := ctx.Err(); err != nil {
			e.state = StateHalted
			res.State = e.state
			return res, err
		}
		rev := t.Revision()
		if rev == "" {
			e.state = StateHalted
			res.State = e.state
			return res, fmt.Errorf("%w: %s", ErrUnresolvedRev, t.Name)
		}
		if opts.Continue && opts.Recorded.Has(rev) {
			e.reporter().Skipping(t.Name)
			e.logger().Info("skipping recorded branch", zap.String("branch", t.Name), zap.String("rev", rev))
			_ = e.Telemetry.Branch(telemetry.KindMergeSkipped, t.Name, rev, nil)
			res.Skipped = append(res.Skipped, t.Name)
			continue
		}

		if err := e.mergeOne(ctx, t, policy, opts); err != nil {
			e.state = StateHalted
			res.State = e.state
			e.reporter().Halted(t.Name, err)
			return res, err
		}
		if e.Patch != nil {
			if _, err := fmt.Fprintln(e.Patch, PatchLine(t)); err != nil {
				e.state = StateHalted
				res.State = e.state
				return res, fmt.Errorf("recording %s in patch-manifest: %w", t.Name, err)
			}
		}
		_ = e.Telemetry.Branch(telemetry.KindMergeDone, t.Name, rev, map[string]int{"index": len(res.Merged)})
		res.Merged = append(res.Merged, t.Name)
	}

	e.state = StateCompleted
	res.State = e.state
	return res, nil
}

func (e *Engine) mergeOne(ctx context.Context, t *manifest.TopicBranch, policy ConflictPolicy, opts Options) error {
	rev := t.Revision()
	e.reporter().Merging(t.Name, t.RepoURL, t.Branch, rev)

	mergeErr := e.Git.Merge(ctx, rev, Message(opts.Branding, t, opts.JiraBaseURL))
	if mergeErr == nil {
		return nil
	}

	r, err := policy.inspect(ctx, e.Git)
	if err != nil {
		return fmt.Errorf("inspecting failed merge of %s: %w", t.Name, err)
	}
	if !r.resolved {
		return e.halt(ctx, t, r, mergeErr)
	}

	stat, err := e.Git.DiffStatCached(ctx)
	if err != nil {
		return fmt.Errorf("diffstat of %s: %w", t.Name, err)
	}
	e.logger().Info("rerere resolved merge", zap.String("branch", t.Name), zap.String("diffstat", stat))
	if err := e.Git.CommitNoEdit(ctx); err != nil {
		if len(r.unmerged) > 0 {
			return e.halt(ctx, t, r, err)
		}
		return fmt.Errorf("concluding rerere merge of %s: %w", t.Name, err)
	}
	e.reporter().RerereResolved(t.Name)
	_ = e.Telemetry.Branch(telemetry.KindRerereResolved, t.Name, rev, nil)
	return nil
}

func (e *Engine) halt(ctx context.Context, t *manifest.TopicBranch, r resolution, mergeErr error) error {
	cerr := &ConflictError{Branch: t.Name, Rev: t.Revision(), Unmerged: r.unmerged, Err: mergeErr}

	if e.Snapshots != nil {
		snap := conflict.Snapshot{
			Branch:   t.Name,
			RepoURL:  t.RepoURL,
			Rev:      t.Revision(),
			Unmerged: r.unmerged,
			Rerere:   r.rerere,
			At:       e.now(),
		}
		// Status and diff are best effort.
		if s, err := e.Git.Status(ctx); err == nil {
			snap.Status = s
		}
		if d, err := e.Git.Diff(ctx); err == nil {
			snap.Diff = d
		}
		if c, err := e.Snapshots.Put(snap); err != nil {
			e.logger().Warn("saving conflict snapshot failed", zap.String("branch", t.Name), zap.Error(err))
		} else {
			cerr.Snapshot = c
		}
	}

	snapshot := ""
	if cerr.Snapshot.Defined() {
		snapshot = cerr.Snapshot.String()
	}
	e.logger().Error("merge halted",
		zap.String("branch", t.Name),
		zap.String("rev", t.Revision()),
		zap.Strings("unmerged", r.unmerged),
		zap.String("snapshot", snapshot),
		zap.Error(mergeErr),
	)
	_ = e.Telemetry.Branch(telemetry.KindMergeHalted, t.Name, t.Revision(), map[string]any{
		"unmerged": r.unmerged,
		"snapshot": snapshot,
	})
	return cerr
}
