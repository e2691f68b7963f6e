package manifest

import (
	"regexp"
	"strings"
)

// Key identifies a tracked branch as "<sanitized-remote>/<branch>". It is
// also the name of the remote-tracking ref under refs/remotes/.
type Key string

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SanitizeRemoteName turns a repository URL into a git remote name.
// Tildes are dropped and every run of non-alphanumerics becomes "_".
func SanitizeRemoteName(repoURL string) string {
	return nonAlnum.ReplaceAllString(strings.ReplaceAll(repoURL, "~", ""), "_")
}

// KeyFor builds the composite key for a repository URL and branch.
func KeyFor(repoURL, branch string) Key {
	return Key(SanitizeRemoteName(repoURL) + "/" + branch)
}

// Remote returns the remote name part of the key.
func (k Key) Remote() string {
	remote, _, _ := strings.Cut(string(k), "/")
	return remote
}

// Branch returns the branch part of the key.
func (k Key) Branch() string {
	_, branch, _ := strings.Cut(string(k), "/")
	return branch
}

// TrackingRef returns the full remote-tracking ref for the key.
func (k Key) TrackingRef() string {
	return "refs/remotes/" + string(k)
}
