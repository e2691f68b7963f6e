// Package audit renders the reproducible record of a merge run: the
// resolved manifest, a human-readable manifest log and a fast-reference
// table. Every view is a pure function of the manifest, so regenerating it
// from the same state yields identical bytes.
package audit

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/papapumpkin/mergetrain/internal/fsutil"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/merge"
)

// LogOptions carries the context printed into the manifest log.
type LogOptions struct {
	Project     string
	JiraBaseURL string
}

// RenderManifestJSON returns the outgoing manifest.
func RenderManifestJSON(m *manifest.Manifest) ([]byte, error) {
	return manifest.Encode(m, manifest.FormatJSON)
}

// RenderManifestLog returns the text manifest: the upstream base followed
// by the blurb of every enabled branch in manifest order.
func RenderManifestLog(m *manifest.Manifest, opts LogOptions) string {
	var b strings.Builder
	b.WriteString("#Linux upstream\n")
	master := &m.Master
	if master.UseLatestTag {
		fmt.Fprintf(&b, "%s %s %s %s\n\n", master.RepoURL, master.TagName(), master.Branch, master.Revision())
	} else {
		fmt.Fprintf(&b, "%s %s %s\n\n", master.RepoURL, master.Branch, master.Revision())
	}
	for _, t := range m.Enabled() {
		b.WriteString(merge.Blurb(t, merge.BlurbOptions{
			Project:      opts.Project,
			JiraBaseURL:  opts.JiraBaseURL,
			WithRepoLine: true,
		}))
	}
	return b.String()
}

// RenderReference returns a markdown table with one row per enabled branch.
func RenderReference(m *manifest.Manifest) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Topic Branch", "Description", "Targeted platforms", "Contributor", "Email", "Repo URL", "Branch", "Reference"})
	for _, t := range m.Enabled() {
		platforms := t.Platforms
		if platforms == "" {
			platforms = "N/A"
		}
		var name, email string
		if len(t.Contributors) > 0 {
			name, email = t.Contributors[0].Name, t.Contributors[0].Email
		}
		tw.AppendRow(table.Row{t.Name, t.Description, platforms, name, email, t.RepoURL, t.Branch, t.Revision()})
	}
	return tw.RenderMarkdown()
}

// WriteArtifacts writes the outgoing manifest and the manifest log.
func WriteArtifacts(jsonPath, logPath string, m *manifest.Manifest, opts LogOptions) error {
	data, err := RenderManifestJSON(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := fsutil.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", jsonPath, err)
	}
	if err := fsutil.WriteFile(logPath, []byte(RenderManifestLog(m, opts)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", logPath, err)
	}
	return nil
}

// RenderListing returns the branch listing of the input manifest, disabled
// branches included. With repos set the second column is the repository URL
// and branch instead of the tracking ref.
func RenderListing(m *manifest.Manifest, repos bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	header := "git remote name/branch"
	if repos {
		header = "git repo branch"
	}
	tw.AppendHeader(table.Row{"name", header, "enabled"})
	for _, t := range m.Topics {
		ref := string(t.Key())
		if repos {
			ref = t.RepoURL + " " + t.Branch
		}
		tw.AppendRow(table.Row{t.Name, ref, t.Enabled})
	}
	return tw.Render()
}
