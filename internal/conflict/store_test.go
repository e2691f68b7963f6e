package conflict

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStorePutGet(t *testing.T) {
	t.Parallel()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	snap := Snapshot{
		Branch:   "feat-a",
		RepoURL:  "https://git.example.com/a.git",
		Rev:      "abc",
		Unmerged: []string{"drivers/foo.c"},
		Status:   "both modified: drivers/foo.c",
		Diff:     "<<<<<<<",
		At:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	c1, err := s.Put(snap)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	c2, err := s.Put(snap)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if !c1.Equals(c2) {
		t.Errorf("identical snapshots got different ids: %s vs %s", c1, c2)
	}

	got, err := s.Get(c1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}

	latestID, latest, err := s.Latest("feat-a")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latestID.Equals(c1) || latest.Rev != "abc" {
		t.Errorf("Latest = %s %+v", latestID, latest)
	}
}

func TestStoreLatestTracksNewest(t *testing.T) {
	t.Parallel()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(Snapshot{Branch: "b", Rev: "one"}); err != nil {
		t.Fatal(err)
	}
	second, err := s.Put(Snapshot{Branch: "b", Rev: "two"})
	if err != nil {
		t.Fatal(err)
	}
	id, snap, err := s.Latest("b")
	if err != nil {
		t.Fatal(err)
	}
	if !id.Equals(second) || snap.Rev != "two" {
		t.Errorf("Latest = %s %q, want %s two", id, snap.Rev, second)
	}
}

func TestStoreLatestMissing(t *testing.T) {
	t.Parallel()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Latest("nope"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestStoreDetectsCorruption(t *testing.T) {
	t.Parallel()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.Put(Snapshot{Branch: "b", Rev: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(c), []byte(`{"branch":"b","rev":"tampered"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(c); err == nil {
		t.Error("expected corruption to be detected")
	}
}
