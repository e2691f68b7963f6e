package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// FetchPlan lists the branches whose tracking refs are behind their remote
// and the distinct remotes that must be fetched to bring them up to date.
type FetchPlan struct {
	Stale   []manifest.Key
	Remotes []string
}

// Empty reports whether nothing needs fetching.
func (p FetchPlan) Empty() bool {
	return len(p.Remotes) == 0
}

// Plan compares remote heads against local tracking revisions. A key is
// stale when it was never fetched or its tracking revision differs. Keys
// absent from remote (failed resolutions) are never planned. The result is
// sorted and does not depend on map iteration order.
func Plan(remote RevisionMap, local TrackingMap) FetchPlan {
	var plan FetchPlan
	remotes := make(map[string]bool)
	for key, rev := range remote {
		if l := local[key]; l != nil && *l == rev {
			continue
		}
		plan.Stale = append(plan.Stale, key)
		remotes[key.Remote()] = true
	}
	sort.Slice(plan.Stale, func(i, j int) bool { return plan.Stale[i] < plan.Stale[j] })
	for r := range remotes {
		plan.Remotes = append(plan.Remotes, r)
	}
	sort.Strings(plan.Remotes)
	return plan
}

// Fetch executes the plan as a single batched fetch. An empty plan performs
// no network operation.
func Fetch(ctx context.Context, f vcs.Fetcher, plan FetchPlan) error {
	if plan.Empty() {
		return nil
	}
	if err := f.Fetch(ctx, plan.Remotes...); err != nil {
		return fmt.Errorf("fetching %d remotes: %w", len(plan.Remotes), err)
	}
	return nil
}

// shortRev returns the last ten characters of rev, as shown in diagnostics.
func shortRev(rev string) string {
	if len(rev) <= 10 {
		return rev
	}
	return rev[len(rev)-10:]
}

// stylePsql is StyleDefault with a "|---+---|" header rule and headers left
// as written, matching psql output.
var stylePsql = func() table.Style {
	s := table.StyleDefault
	s.Name = "StylePsql"
	s.Box.LeftSeparator = "|"
	s.Box.RightSeparator = "|"
	s.Format.Header = text.FormatDefault
	return s
}()

// DiagnosticTable renders remote versus local revisions per topic branch.
func DiagnosticTable(topics []*manifest.TopicBranch, remote RevisionMap, local TrackingMap, failures Failures) string {
	tw := table.NewWriter()
	tw.SetStyle(stylePsql)
	tw.AppendHeader(table.Row{"Branch Name", "Remote SHA", "Local SHA", "Fetch Needed?"})

	for _, t := range topics {
		key := t.Key()
		localRev := ""
		if l := local[key]; l != nil {
			localRev = shortRev(*l)
		}
		switch {
		case failures[key] != nil:
			tw.AppendRow(table.Row{t.Name, "error", localRev, "unknown"})
		default:
			rev := remote[key]
			needed := local[key] == nil || *local[key] != rev
			tw.AppendRow(table.Row{t.Name, shortRev(rev), localRev, needed})
		}
	}
	return tw.Render()
}
