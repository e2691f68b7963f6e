package merge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/papapumpkin/mergetrain/internal/manifest"
)

// PatchLine formats the patch-manifest entry recorded after a branch merges.
func PatchLine(t *manifest.TopicBranch) string {
	return fmt.Sprintf("Merging %s %s %s %s", t.Name, t.RepoURL, t.Branch, t.Revision())
}

// Recorded is the set of revisions a patch-manifest lists as merged.
type Recorded map[string]bool

// Has reports whether rev was recorded as merged.
func (r Recorded) Has(rev string) bool {
	return rev != "" && r[rev]
}

// ParsePatchManifest reads "Merging <name> <repourl> <branch> <rev>" lines.
// The revision is always the last field; names may contain spaces. Other
// lines are ignored.
func ParsePatchManifest(r io.Reader) (Recorded, error) {
	rec := make(Recorded)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] != "Merging" {
			continue
		}
		rec[fields[len(fields)-1]] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading patch-manifest: %w", err)
	}
	return rec, nil
}

// ReadPatchManifest parses the patch-manifest at path. A missing file
// records nothing.
func ReadPatchManifest(path string) (Recorded, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Recorded{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening patch-manifest: %w", err)
	}
	defer f.Close()
	return ParsePatchManifest(f)
}
