package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/papapumpkin/mergetrain/internal/fsutil"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

const rule = "------------------------------------------------------------------------"

// Slug lowercases branding and joins its words with dashes.
func Slug(branding string) string {
	return strings.ToLower(strings.Join(strings.Fields(branding), "-"))
}

// Localversion returns the kernel localversion suffix for a release.
func Localversion(branding string, date time.Time) string {
	return fmt.Sprintf("-%s-%s", Slug(branding), date.Format(time.DateOnly))
}

// RenderReleaseReadme concatenates every README.* file in dir except
// README.md and the names in exclude, in lexical order, between rulers,
// and ends with the maintainers line.
func RenderReleaseReadme(dir string, exclude []string, maintainers string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "README.*"))
	if err != nil {
		return "", err
	}
	skip := map[string]bool{"README.md": true}
	for _, e := range exclude {
		skip[e] = true
	}

	var b strings.Builder
	b.WriteString(rule + "\n")
	for _, path := range matches {
		name := filepath.Base(path)
		if skip[name] {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		fmt.Fprintf(&b, "%s:\n\n%s\n", name, data)
	}
	b.WriteString("\n" + rule + "\n")
	b.WriteString(maintainers)
	return b.String(), nil
}

// Release commits the artifacts of a finished run into the release
// directory of the work tree.
type Release struct {
	Git vcs.Committer
	// WorkDir is the repository root; every other path is relative to it
	// unless absolute.
	WorkDir    string
	ReleaseDir string

	ManifestJSON  string
	ManifestLog   string
	RunLog        string
	PatchManifest string
	Readme        string
	Localversion  string
	ConfigFiles   []string

	Branding    string
	Project     string
	Maintainers string
	Date        time.Time
}

// ErrNoReleaseDir indicates the release directory has not been merged into
// the work tree, so there is nowhere to commit release files to.
var ErrNoReleaseDir = errors.New("release directory not present")

func (r *Release) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.WorkDir, p)
}

// Subject returns the first line of the release commit message.
func (r *Release) Subject(m *manifest.Manifest) string {
	base := r.Branding
	if r.Project != "" {
		base = fmt.Sprintf("%s (%s project release)", r.Branding, r.Project)
	}
	target := "master:" + m.Master.Revision()
	if m.Master.UseLatestTag {
		target = m.Master.TagName()
	}
	return fmt.Sprintf("%s: Add release files for %s %s", base, target, r.Date.Format(time.DateOnly))
}

// Message returns the full release commit message.
func (r *Release) Message(m *manifest.Manifest, added []string) string {
	var b strings.Builder
	b.WriteString(r.Subject(m) + "\n\n")
	fmt.Fprintf(&b, "Added: %s\n\n", strings.Join(added, ", "))
	b.WriteString("Manifest:\n")
	for _, t := range m.Enabled() {
		fmt.Fprintf(&b, "%s %s %s\n", t.RepoURL, t.Branch, t.Revision())
	}
	if len(r.ConfigFiles) > 0 {
		fmt.Fprintf(&b, "\nConfig Files:\n%s\n", strings.Join(r.ConfigFiles, "\n"))
	}
	return b.String()
}

// Commit moves the manifests into the release directory, copies the run
// log and patch-manifest alongside them, refreshes the release README,
// appends the fast reference to README.md, writes the localversion file and
// creates a signed-off commit. It returns ErrNoReleaseDir, touching nothing,
// when the release directory is absent.
func (r *Release) Commit(ctx context.Context, m *manifest.Manifest) error {
	relDir := r.abs(r.ReleaseDir)
	if info, err := os.Stat(relDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoReleaseDir, r.ReleaseDir)
	}

	var stage, added []string
	for _, src := range []string{r.ManifestJSON, r.ManifestLog} {
		dst := filepath.Join(r.ReleaseDir, filepath.Base(src))
		if err := os.Rename(r.abs(src), r.abs(dst)); err != nil {
			return fmt.Errorf("moving %s: %w", src, err)
		}
		stage = append(stage, dst)
		added = append(added, filepath.Base(src))
	}
	for _, src := range []string{r.RunLog, r.PatchManifest} {
		dst := filepath.Join(r.ReleaseDir, filepath.Base(src))
		if err := copyFile(r.abs(src), r.abs(dst)); err != nil {
			return fmt.Errorf("copying %s: %w", src, err)
		}
		stage = append(stage, dst)
		added = append(added, filepath.Base(src))
	}

	readme, err := RenderReleaseReadme(r.WorkDir, []string{r.Readme}, r.Maintainers)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", r.Readme, err)
	}
	if err := fsutil.WriteFile(r.abs(r.Readme), []byte(readme), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", r.Readme, err)
	}

	f, err := os.OpenFile(r.abs("README.md"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening README.md: %w", err)
	}
	_, werr := fmt.Fprintf(f, "## Fast Manifest Reference\n\n%s\n", RenderReference(m))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("appending to README.md: %w", werr)
	}

	lv := Localversion(r.Branding, r.Date) + "\n"
	if err := fsutil.WriteFile(r.abs(r.Localversion), []byte(lv), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", r.Localversion, err)
	}

	stage = append(stage, r.Readme, "README.md", r.Localversion)
	added = append(added, r.Readme, "README.md", r.Localversion)
	stage = append(stage, r.ConfigFiles...)
	if err := r.Git.Add(ctx, stage...); err != nil {
		return fmt.Errorf("staging release files: %w", err)
	}
	if err := r.Git.Commit(ctx, r.Message(m, added)); err != nil {
		return fmt.Errorf("committing release files: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return fsutil.WriteFile(dst, data, 0o644)
}
