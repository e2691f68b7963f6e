package vcs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// GitCLI implements Backend by shelling out to git in a working directory.
// Every invocation is logged with its full captured output before any
// error is returned.
type GitCLI struct {
	dir string
	log *zap.Logger
}

var _ Backend = (*GitCLI)(nil)

// NewGitCLI returns a GitCLI for dir. It fails if git is not on PATH or dir
// is not inside a repository. A nil logger discards command logs.
func NewGitCLI(ctx context.Context, dir string, log *zap.Logger) (*GitCLI, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("not a git repository: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GitCLI{dir: dir, log: log}, nil
}

// Dir returns the working directory commands run in.
func (g *GitCLI) Dir() string {
	return g.dir
}

func (g *GitCLI) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	// Never block on a credential prompt or a merge message editor.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_MERGE_AUTOEDIT=no")
	return cmd
}

// run executes git and returns its stdout.
func (g *GitCLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := g.command(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	g.log.Info("git",
		zap.String("cmd", "git "+strings.Join(args, " ")),
		zap.String("stdout", stdout.String()),
		zap.String("stderr", stderr.String()),
		zap.Int("exit_code", code),
	)
	if err != nil {
		return stdout.String(), &CommandError{
			Args:     args,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: code,
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// Remotes lists configured remote names.
func (g *GitCLI) Remotes(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "remote")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// AddRemote runs git remote add.
func (g *GitCLI) AddRemote(ctx context.Context, name, url string) error {
	_, err := g.run(ctx, "remote", "add", name, url)
	return err
}

// SetRemoteURL runs git remote set-url.
func (g *GitCLI) SetRemoteURL(ctx context.Context, name, url string) error {
	_, err := g.run(ctx, "remote", "set-url", name, url)
	return err
}

// LsRemote lists refs on remote named exactly ref.
func (g *GitCLI) LsRemote(ctx context.Context, remote, ref string) ([]Ref, error) {
	out, err := g.run(ctx, "ls-remote", remote, ref)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	for _, r := range parseRefs(out) {
		if r.Name == ref {
			refs = append(refs, r)
		}
	}
	return refs, nil
}

// LsRemoteTags lists tag refs on remote.
func (g *GitCLI) LsRemoteTags(ctx context.Context, remote string) ([]Ref, error) {
	out, err := g.run(ctx, "ls-remote", "--tags", remote)
	if err != nil {
		return nil, err
	}
	return parseRefs(out), nil
}

// Fetch fetches several remotes in one git fetch --multiple call.
func (g *GitCLI) Fetch(ctx context.Context, remotes ...string) error {
	if len(remotes) == 0 {
		return nil
	}
	_, err := g.run(ctx, append([]string{"fetch", "--multiple"}, remotes...)...)
	return err
}

// FetchRemote fetches one remote, pruning and force-updating tracking refs.
func (g *GitCLI) FetchRemote(ctx context.Context, remote string) error {
	_, err := g.run(ctx, "fetch", "--prune", "--force", remote)
	return err
}

// ResolveRef resolves a local ref to a commit id.
func (g *GitCLI) ResolveRef(ctx context.Context, ref string) (string, bool, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(out), true, nil
}

// HasCommit reports whether rev is a commit in the local object store.
func (g *GitCLI) HasCommit(ctx context.Context, rev string) bool {
	_, err := g.run(ctx, "cat-file", "-e", rev+"^{commit}")
	return err == nil
}

// RevList returns the newest commit reachable from rev.
func (g *GitCLI) RevList(ctx context.Context, rev string) (string, error) {
	out, err := g.run(ctx, "rev-list", "-1", rev)
	if err != nil {
		return "", err
	}
	l := lines(out)
	if len(l) == 0 {
		return "", fmt.Errorf("git rev-list -1 %s: no commits", rev)
	}
	return l[0], nil
}

// Describe runs git describe on rev.
func (g *GitCLI) Describe(ctx context.Context, rev string) (string, error) {
	out, err := g.run(ctx, "describe", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CheckoutForce checks out branch, discarding local changes.
func (g *GitCLI) CheckoutForce(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", "-f", branch)
	return err
}

// ResetHard resets HEAD, index and working tree to rev.
func (g *GitCLI) ResetHard(ctx context.Context, rev string) error {
	_, err := g.run(ctx, "reset", "--hard", rev)
	return err
}

// rerere forces rerere on for the merge commands regardless of the work
// tree's configuration. Without it a fresh conflict leaves rerere status
// empty and is indistinguishable from a recorded resolution.
var rerere = []string{"-c", "rerere.enabled=true"}

func withRerere(args ...string) []string {
	return append(append([]string{}, rerere...), args...)
}

// Merge merges rev with a generated message. A non-nil error means git
// reported failure, usually conflicts.
func (g *GitCLI) Merge(ctx context.Context, rev, message string) error {
	_, err := g.run(ctx, withRerere("merge", "-m", message, "--no-ff", "--rerere-autoupdate", "--log", rev)...)
	return err
}

// RerereStatus returns the paths rerere would still record a resolution for.
func (g *GitCLI) RerereStatus(ctx context.Context) (string, error) {
	return g.run(ctx, withRerere("rerere", "status")...)
}

// UnmergedPaths lists paths with unresolved conflicts.
func (g *GitCLI) UnmergedPaths(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// DiffStatCached returns the staged diffstat.
func (g *GitCLI) DiffStatCached(ctx context.Context) (string, error) {
	return g.run(ctx, "diff", "--stat", "--stat-width=200", "--cached")
}

// CommitNoEdit concludes a merge with the prepared message.
func (g *GitCLI) CommitNoEdit(ctx context.Context) error {
	_, err := g.run(ctx, withRerere("commit", "--no-edit")...)
	return err
}

// Status returns git status output.
func (g *GitCLI) Status(ctx context.Context) (string, error) {
	return g.run(ctx, "status")
}

// Diff returns the working tree diff against the index.
func (g *GitCLI) Diff(ctx context.Context) (string, error) {
	return g.run(ctx, "diff")
}

// Add stages paths.
func (g *GitCLI) Add(ctx context.Context, paths ...string) error {
	_, err := g.run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit creates a signed-off commit.
func (g *GitCLI) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-s", "-m", message)
	return err
}

// Changed reports whether path is untracked or has unstaged changes.
func (g *GitCLI) Changed(ctx context.Context, path string) (bool, error) {
	tracked, err := g.run(ctx, "ls-files", "--", path)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(tracked) == "" {
		return true, nil
	}
	diff, err := g.run(ctx, "diff", "--", path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(diff) != "", nil
}

// maxLogRecord bounds a single commit record read by Walk.
var maxLogRecord = 16 * 1024 * 1024

// Walk streams first-parent history of rev. The git process is stopped as
// soon as fn returns false, so walking a deep history costs only what is
// visited.
func (g *GitCLI) Walk(ctx context.Context, rev string, fn func(Commit) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := []string{"log", "--first-parent", "--format=%H%x1f%an%x1f%B%x1e", rev, "--"}
	cmd := g.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("git log pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting git log: %w", err)
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), maxLogRecord)
	sc.Split(splitRecords)

	visited := 0
	stopped := false
	for sc.Scan() {
		c, ok := parseCommitRecord(sc.Text())
		if !ok {
			continue
		}
		visited++
		if !fn(c) {
			stopped = true
			break
		}
	}
	scanErr := sc.Err()
	if stopped || scanErr != nil {
		// git may be blocked writing the rest of the log.
		cancel()
	}
	waitErr := cmd.Wait()

	g.log.Info("git",
		zap.String("cmd", "git "+strings.Join(args, " ")),
		zap.Int("visited", visited),
		zap.Bool("stopped", stopped),
		zap.String("stderr", stderr.String()),
	)
	if stopped {
		return nil
	}
	if scanErr != nil {
		return fmt.Errorf("reading git log: %w", scanErr)
	}
	if waitErr != nil {
		return &CommandError{Args: args, Stderr: stderr.String(), ExitCode: cmd.ProcessState.ExitCode(), Err: waitErr}
	}
	return nil
}

// splitRecords splits git log output on the 0x1e record separator.
func splitRecords(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, 0x1e); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func parseCommitRecord(rec string) (Commit, bool) {
	rec = strings.TrimLeft(rec, "\n")
	parts := strings.SplitN(rec, "\x1f", 3)
	if len(parts) < 3 {
		return Commit{}, false
	}
	return Commit{Hash: parts[0], Author: parts[1], Message: strings.TrimRight(parts[2], "\n")}, true
}

// parseRefs parses "<hash>\t<name>" lines from ls-remote.
func parseRefs(out string) []Ref {
	var refs []Ref
	for _, line := range lines(out) {
		hash, name, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		refs = append(refs, Ref{Name: strings.TrimSpace(name), Hash: strings.TrimSpace(hash)})
	}
	return refs
}

func lines(out string) []string {
	var res []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			res = append(res, l)
		}
	}
	return res
}
