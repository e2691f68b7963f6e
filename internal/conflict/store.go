// Package conflict stores snapshots of halted merges. Each snapshot is an
// immutable JSON object addressed by its CID, so repeated halts on the same
// conflict state produce a single file, and a per-branch ref names the most
// recent snapshot.
package conflict

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"github.com/papapumpkin/mergetrain/internal/fsutil"
)

// ErrNoSnapshot indicates no snapshot has been recorded for a branch.
var ErrNoSnapshot = errors.New("no conflict snapshot")

// Snapshot captures the conflict state of a halted merge.
type Snapshot struct {
	Branch   string    `json:"branch"`
	RepoURL  string    `json:"repourl"`
	Rev      string    `json:"rev"`
	Unmerged []string  `json:"unmerged"`
	Rerere   string    `json:"rerere_status"`
	Status   string    `json:"status"`
	Diff     string    `json:"diff"`
	At       time.Time `json:"at"`
}

// Store keeps snapshots under dir/objects and branch refs under dir/refs.
type Store struct {
	objects string
	refs    string
}

// NewStore creates the store directories under dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{objects: filepath.Join(dir, "objects"), refs: filepath.Join(dir, "refs")}
	for _, d := range []string{s.objects, s.refs} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return s, nil
}

// ComputeCID computes a CIDv1 (raw codec, SHA2-256) for data.
func ComputeCID(data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

func filename(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// Put stores snap and points the branch ref at it.
func (s *Store) Put(snap Snapshot) (gocid.Cid, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return gocid.Undef, fmt.Errorf("encode snapshot: %w", err)
	}
	c, err := ComputeCID(data)
	if err != nil {
		return gocid.Undef, err
	}
	path := filepath.Join(s.objects, filename(c))
	if !fsutil.Exists(path) {
		if err := fsutil.WriteFile(path, data, 0o644); err != nil {
			return gocid.Undef, fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := fsutil.WriteFile(s.refPath(snap.Branch), []byte(filename(c)+"\n"), 0o644); err != nil {
		return gocid.Undef, fmt.Errorf("write ref %s: %w", snap.Branch, err)
	}
	return c, nil
}

// Get reads the snapshot stored under c and checks its content address.
func (s *Store) Get(c gocid.Cid) (Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.objects, filename(c)))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", c, err)
	}
	got, err := ComputeCID(data)
	if err != nil {
		return Snapshot{}, err
	}
	if !got.Equals(c) {
		return Snapshot{}, fmt.Errorf("snapshot %s is corrupt: content hashes to %s", c, got)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", c, err)
	}
	return snap, nil
}

// Latest returns the most recent snapshot recorded for branch.
func (s *Store) Latest(branch string) (gocid.Cid, Snapshot, error) {
	data, err := os.ReadFile(s.refPath(branch))
	if errors.Is(err, os.ErrNotExist) {
		return gocid.Undef, Snapshot{}, fmt.Errorf("%w for %s", ErrNoSnapshot, branch)
	}
	if err != nil {
		return gocid.Undef, Snapshot{}, err
	}
	_, raw, err := multibase.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return gocid.Undef, Snapshot{}, fmt.Errorf("decode ref %s: %w", branch, err)
	}
	c, err := gocid.Cast(raw)
	if err != nil {
		return gocid.Undef, Snapshot{}, fmt.Errorf("decode ref %s: %w", branch, err)
	}
	snap, err := s.Get(c)
	return c, snap, err
}

// Path returns the file a snapshot is stored in.
func (s *Store) Path(c gocid.Cid) string {
	return filepath.Join(s.objects, filename(c))
}

func (s *Store) refPath(branch string) string {
	return filepath.Join(s.refs, strings.ReplaceAll(branch, string(filepath.Separator), "__"))
}
