package merge

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/mergetrain/internal/manifest"
)

const notAvailable = "N/A"

// BlurbOptions controls the descriptive block attached to a branch.
type BlurbOptions struct {
	Project     string
	JiraBaseURL string
	// WithRepoLine appends "<repourl> <branch> <rev>" and a blank line, as
	// in the manifest log.
	WithRepoLine bool
}

func joinContacts(cs []manifest.Contact) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

func jiraURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimSpace(id)
}

// Blurb renders the "#Key: value" description of a topic branch used in
// merge commit messages and the manifest log.
func Blurb(t *manifest.TopicBranch, opts BlurbOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#Topic Branch: %s\n", t.Name)
	fmt.Fprintf(&b, "#Classification: %s\n", t.Status)
	fmt.Fprintf(&b, "#Description: %s\n", t.Description)
	if opts.Project != "" {
		fmt.Fprintf(&b, "#Project: %s\n", opts.Project)
	}

	if t.Jira != "" {
		fmt.Fprintf(&b, "#Topic Branch JIRA: %s\n", jiraURL(opts.JiraBaseURL, t.Jira))
	} else {
		fmt.Fprintf(&b, "#Topic Branch JIRA: %s\n", notAvailable)
	}
	fmt.Fprintf(&b, "#Pull Request: %s\n", orNA(t.MailList))
	fmt.Fprintf(&b, "#Targeted Platforms: %s\n", orNA(t.Platforms))

	if t.FeatureJiras != "" {
		b.WriteString("#Feature JIRAs: \n")
		for _, id := range strings.Split(t.FeatureJiras, ",") {
			fmt.Fprintf(&b, "#\t%s\n", jiraURL(opts.JiraBaseURL, id))
		}
	} else {
		fmt.Fprintf(&b, "#Feature JIRAs: %s\n", notAvailable)
	}

	fmt.Fprintf(&b, "#Contributor: %s\n", joinContacts(t.Contributors))
	fmt.Fprintf(&b, "#Branch Type: %s\n", t.BranchType)
	fmt.Fprintf(&b, "#Ip Owner: %s\n", joinContacts(t.IPOwners))
	fmt.Fprintf(&b, "#SDL Contact: %s\n", joinContacts(t.SDLContacts))

	if len(t.ConfigOptions) > 0 {
		b.WriteString("#Config Options:\n")
		for _, o := range t.ConfigOptions {
			fmt.Fprintf(&b, "#\t%s=%s\n", o.Name, o.Value)
		}
	} else {
		fmt.Fprintf(&b, "#Config Options: %s\n", notAvailable)
	}

	if opts.WithRepoLine && t.Enabled {
		fmt.Fprintf(&b, "%s %s %s\n\n", t.RepoURL, t.Branch, t.Revision())
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// Message builds the merge commit message for t.
func Message(branding string, t *manifest.TopicBranch, jiraBaseURL string) string {
	return fmt.Sprintf("%s: Merge commit %s from %s %s\n\n%s",
		branding, t.Revision(), t.RepoURL, t.Branch,
		Blurb(t, BlurbOptions{JiraBaseURL: jiraBaseURL}))
}
