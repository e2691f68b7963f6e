package vcs

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// initTestRepo creates a temporary git repo with an initial commit.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	run(ctx, t, dir, "git", "init")
	run(ctx, t, dir, "git", "config", "user.email", "test@test.com")
	run(ctx, t, dir, "git", "config", "user.name", "Test")
	run(ctx, t, dir, "git", "config", "rerere.enabled", "true")
	run(ctx, t, dir, "git", "config", "commit.gpgsign", "false")

	writeFile(t, dir, "file.txt", "base\n")
	run(ctx, t, dir, "git", "add", "-A")
	run(ctx, t, dir, "git", "commit", "-m", "initial")
	run(ctx, t, dir, "git", "checkout", "-b", "trunk")
	return dir
}

// run executes a command in the given directory and fails the test on error.
func run(ctx context.Context, t *testing.T, dir string, name string, args ...string) string {
	t.Helper()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v failed: %v\n%s", name, args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newCLI(t *testing.T, dir string) *GitCLI {
	t.Helper()
	g, err := NewGitCLI(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("NewGitCLI: %v", err)
	}
	return g
}

func TestNewGitCLI(t *testing.T) {
	t.Run("valid repo", func(t *testing.T) {
		newCLI(t, initTestRepo(t))
	})
	t.Run("non-repo directory", func(t *testing.T) {
		if _, err := NewGitCLI(context.Background(), t.TempDir(), nil); err == nil {
			t.Fatal("expected error for non-repo directory")
		}
	})
}

func TestGitCLI_Remotes(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	upstream := initTestRepo(t)
	g := newCLI(t, dir)

	if err := g.AddRemote(ctx, "up", upstream); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	if err := g.AddRemote(ctx, "up", upstream); err == nil {
		t.Fatal("adding an existing remote should fail")
	}
	other := initTestRepo(t)
	if err := g.SetRemoteURL(ctx, "up", other); err != nil {
		t.Fatalf("SetRemoteURL: %v", err)
	}
	remotes, err := g.Remotes(ctx)
	if err != nil {
		t.Fatalf("Remotes: %v", err)
	}
	if diff := cmp.Diff([]string{"up"}, remotes); diff != "" {
		t.Errorf("remotes (-want +got):\n%s", diff)
	}
	if got := run(ctx, t, dir, "git", "remote", "get-url", "up"); got != other {
		t.Errorf("remote url = %q, want %q", got, other)
	}
}

func TestGitCLI_LsRemoteAndFetch(t *testing.T) {
	ctx := context.Background()
	upstream := initTestRepo(t)
	run(ctx, t, upstream, "git", "checkout", "-b", "topic")
	writeFile(t, upstream, "topic.txt", "topic\n")
	run(ctx, t, upstream, "git", "add", "-A")
	run(ctx, t, upstream, "git", "commit", "-m", "topic work")
	run(ctx, t, upstream, "git", "tag", "v1.0")
	head := run(ctx, t, upstream, "git", "rev-parse", "HEAD")

	dir := initTestRepo(t)
	g := newCLI(t, dir)
	if err := g.AddRemote(ctx, "up", upstream); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}

	refs, err := g.LsRemote(ctx, "up", "refs/heads/topic")
	if err != nil {
		t.Fatalf("LsRemote: %v", err)
	}
	if diff := cmp.Diff([]Ref{{Name: "refs/heads/topic", Hash: head}}, refs); diff != "" {
		t.Errorf("refs (-want +got):\n%s", diff)
	}

	refs, err = g.LsRemote(ctx, "up", "refs/heads/missing")
	if err != nil {
		t.Fatalf("LsRemote missing: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no refs, got %v", refs)
	}

	tags, err := g.LsRemoteTags(ctx, "up")
	if err != nil {
		t.Fatalf("LsRemoteTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "refs/tags/v1.0" {
		t.Errorf("tags = %v", tags)
	}

	if _, ok, err := g.ResolveRef(ctx, "refs/remotes/up/topic"); err != nil || ok {
		t.Fatalf("tracking ref should not exist before fetch: ok=%v err=%v", ok, err)
	}
	if g.HasCommit(ctx, head) {
		t.Fatal("commit should not be present before fetch")
	}
	if err := g.Fetch(ctx, "up"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, ok, err := g.ResolveRef(ctx, "refs/remotes/up/topic")
	if err != nil || !ok {
		t.Fatalf("ResolveRef after fetch: ok=%v err=%v", ok, err)
	}
	if got != head {
		t.Errorf("tracking ref = %s, want %s", got, head)
	}
	if !g.HasCommit(ctx, head) {
		t.Error("commit should be present after fetch")
	}
	rev, err := g.RevList(ctx, "up/topic")
	if err != nil || rev != head {
		t.Errorf("RevList = %q, %v; want %q", rev, err, head)
	}
	if err := g.FetchRemote(ctx, "up"); err != nil {
		t.Errorf("FetchRemote: %v", err)
	}
}

func TestGitCLI_MergeConflict(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	run(ctx, t, dir, "git", "checkout", "-b", "other")
	writeFile(t, dir, "file.txt", "other\n")
	run(ctx, t, dir, "git", "commit", "-am", "other change")
	run(ctx, t, dir, "git", "checkout", "trunk")
	writeFile(t, dir, "file.txt", "trunk\n")
	run(ctx, t, dir, "git", "commit", "-am", "trunk change")

	g := newCLI(t, dir)
	err := g.Merge(ctx, "other", "Merge other")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.ExitCode == 0 {
		t.Error("exit code should be non-zero")
	}

	paths, err := g.UnmergedPaths(ctx)
	if err != nil {
		t.Fatalf("UnmergedPaths: %v", err)
	}
	if diff := cmp.Diff([]string{"file.txt"}, paths); diff != "" {
		t.Errorf("unmerged (-want +got):\n%s", diff)
	}
	status, err := g.RerereStatus(ctx)
	if err != nil {
		t.Fatalf("RerereStatus: %v", err)
	}
	if !strings.Contains(status, "file.txt") {
		t.Errorf("rerere status = %q, want file.txt listed", status)
	}

	writeFile(t, dir, "file.txt", "resolved\n")
	if err := g.Add(ctx, "file.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.CommitNoEdit(ctx); err != nil {
		t.Fatalf("CommitNoEdit: %v", err)
	}
	if msg := run(ctx, t, dir, "git", "log", "-1", "--format=%s"); msg != "Merge other" {
		t.Errorf("merge message = %q", msg)
	}
}

func TestGitCLI_MergeConflictWithoutRerereConfig(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	run(ctx, t, dir, "git", "config", "--unset", "rerere.enabled")
	run(ctx, t, dir, "git", "checkout", "-b", "other")
	writeFile(t, dir, "file.txt", "other\n")
	run(ctx, t, dir, "git", "commit", "-am", "other change")
	run(ctx, t, dir, "git", "checkout", "trunk")
	writeFile(t, dir, "file.txt", "trunk\n")
	run(ctx, t, dir, "git", "commit", "-am", "trunk change")

	g := newCLI(t, dir)
	if err := g.Merge(ctx, "other", "Merge other"); err == nil {
		t.Fatal("expected merge conflict")
	}
	status, err := g.RerereStatus(ctx)
	if err != nil {
		t.Fatalf("RerereStatus: %v", err)
	}
	if !strings.Contains(status, "file.txt") {
		t.Errorf("rerere status = %q, want file.txt listed", status)
	}
}

func TestGitCLI_MergeClean(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	run(ctx, t, dir, "git", "checkout", "-b", "feature")
	writeFile(t, dir, "feature.txt", "feature\n")
	run(ctx, t, dir, "git", "add", "-A")
	run(ctx, t, dir, "git", "commit", "-m", "feature")
	rev := run(ctx, t, dir, "git", "rev-parse", "HEAD")
	run(ctx, t, dir, "git", "checkout", "trunk")

	g := newCLI(t, dir)
	if err := g.Merge(ctx, rev, "Train: Merge commit "+rev); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if msg := run(ctx, t, dir, "git", "log", "-1", "--format=%s"); msg != "Train: Merge commit "+rev {
		t.Errorf("merge message = %q", msg)
	}
	if parents := run(ctx, t, dir, "git", "log", "-1", "--format=%P"); len(strings.Fields(parents)) != 2 {
		t.Errorf("expected a merge commit with two parents, got %q", parents)
	}
	// Merging the same revision again is a no-op.
	if err := g.Merge(ctx, rev, "again"); err != nil {
		t.Fatalf("re-merge: %v", err)
	}
}

func TestGitCLI_Walk(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	run(ctx, t, dir, "git", "add", "-A")
	run(ctx, t, dir, "git", "commit", "--author", "Upstream Maintainer <up@example.com>", "-m", "upstream release")
	writeFile(t, dir, "b.txt", "b\n")
	run(ctx, t, dir, "git", "add", "-A")
	run(ctx, t, dir, "git", "commit", "-m", "topic: second\n\nbody line")

	g := newCLI(t, dir)
	var seen []Commit
	err := g.Walk(ctx, "HEAD", func(c Commit) bool {
		seen = append(seen, c)
		return c.Author != "Upstream Maintainer"
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("visited %d commits, want 2", len(seen))
	}
	if seen[0].Message != "topic: second\n\nbody line" {
		t.Errorf("message = %q", seen[0].Message)
	}
	if seen[1].Author != "Upstream Maintainer" {
		t.Errorf("author = %q", seen[1].Author)
	}

	var all int
	if err := g.Walk(ctx, "HEAD", func(Commit) bool { all++; return true }); err != nil {
		t.Fatalf("full Walk: %v", err)
	}
	if all != 3 {
		t.Errorf("full walk visited %d, want 3", all)
	}

	if err := g.Walk(ctx, "does-not-exist", func(Commit) bool { return true }); err == nil {
		t.Error("walking an unknown revision should fail")
	}
}

func TestGitCLI_WalkRecordTooLong(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	writeFile(t, dir, "msg.txt", "huge\n\n"+strings.Repeat("x", 512*1024)+"\n")
	writeFile(t, dir, "a.txt", "a\n")
	run(ctx, t, dir, "git", "add", "a.txt")
	run(ctx, t, dir, "git", "commit", "-F", "msg.txt")

	old := maxLogRecord
	maxLogRecord = 1024
	defer func() { maxLogRecord = old }()

	g := newCLI(t, dir)
	done := make(chan error, 1)
	go func() {
		done <- g.Walk(ctx, "HEAD", func(Commit) bool { return true })
	}()
	select {
	case err := <-done:
		if !errors.Is(err, bufio.ErrTooLong) {
			t.Errorf("Walk err = %v, want bufio.ErrTooLong", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Walk did not return after an oversized record")
	}
}

func TestGitCLI_Changed(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	g := newCLI(t, dir)

	changed, err := g.Changed(ctx, "file.txt")
	if err != nil || changed {
		t.Fatalf("unchanged tracked file: changed=%v err=%v", changed, err)
	}
	writeFile(t, dir, "file.txt", "edited\n")
	if changed, _ := g.Changed(ctx, "file.txt"); !changed {
		t.Error("modified file should be changed")
	}
	writeFile(t, dir, "new.txt", "new\n")
	if changed, _ := g.Changed(ctx, "new.txt"); !changed {
		t.Error("untracked file should be changed")
	}
}

func TestParseCommitRecord(t *testing.T) {
	t.Parallel()

	c, ok := parseCommitRecord("\nabc\x1fAda\x1fsubject\n\nbody\n")
	if !ok {
		t.Fatal("expected record to parse")
	}
	if diff := cmp.Diff(Commit{Hash: "abc", Author: "Ada", Message: "subject\n\nbody"}, c); diff != "" {
		t.Errorf("commit (-want +got):\n%s", diff)
	}
	if _, ok := parseCommitRecord("\n"); ok {
		t.Error("trailing newline should not parse")
	}
}
