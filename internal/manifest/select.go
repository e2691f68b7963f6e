package manifest

import "fmt"

// Selection narrows which topic branches take part in a run. Names refer to
// TopicBranch.Name.
type Selection struct {
	// Only exclusively enables the named branches, in the given order, and
	// clears any stuck_at_ref they carry.
	Only []string
	// Disable turns off branches even if the manifest enables them.
	Disable []string
	// Enable turns on branches the manifest disables.
	Enable []string
}

// Empty reports whether the selection changes nothing.
func (s Selection) Empty() bool {
	return len(s.Only) == 0 && len(s.Disable) == 0 && len(s.Enable) == 0
}

// Apply validates every name in the selection, then rewrites the topic list:
// Only first (reordering), then Disable, then Enable. Disabled branches are
// dropped so the resolved manifest lists only what will be merged. It returns
// one note per change for the operator. No change is made when a name is
// unknown.
func (m *Manifest) Apply(sel Selection) ([]string, error) {
	known := make(map[string]bool, len(m.Topics))
	for _, t := range m.Topics {
		known[t.Name] = true
	}
	for _, list := range [][]string{sel.Disable, sel.Only, sel.Enable} {
		for _, name := range list {
			if !known[name] {
				return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
			}
		}
	}

	var notes []string
	if len(sel.Only) > 0 {
		var only []TopicBranch
		for _, name := range sel.Only {
			t := *m.Find(name)
			t.Enabled = true
			t.StuckAtRef = ""
			only = append(only, t)
			notes = append(notes, fmt.Sprintf("Exclusively enabled %s due to --only", name))
		}
		m.Topics = only
	}

	disable := toSet(sel.Disable)
	enable := toSet(sel.Enable)
	for i := range m.Topics {
		t := &m.Topics[i]
		if disable[t.Name] {
			t.Enabled = false
			notes = append(notes, fmt.Sprintf("Disabling %s due to --disable", t.Name))
		}
	}
	for i := range m.Topics {
		t := &m.Topics[i]
		if enable[t.Name] {
			t.Enabled = true
			notes = append(notes, fmt.Sprintf("Enabling %s due to --enable", t.Name))
		}
	}

	kept := m.Topics[:0]
	for _, t := range m.Topics {
		if t.Enabled {
			kept = append(kept, t)
		}
	}
	m.Topics = kept
	return notes, nil
}

// ApplyProject restricts the manifest to a project-scoped merge. Branches
// with an entry for the project take their enabled/branch/stuck_at_ref from
// it; branches with an empty project_branches table belong to every project
// and are kept as-is; all others are removed.
func (m *Manifest) ApplyProject(project string) error {
	found := false
	var kept []TopicBranch
	for _, t := range m.Topics {
		if pb, ok := t.ProjectBranches[project]; ok {
			t.Enabled = pb.Enabled
			t.Branch = pb.Branch
			t.StuckAtRef = pb.StuckAtRef
			found = true
			kept = append(kept, t)
			continue
		}
		if t.ProjectBranches != nil && len(t.ProjectBranches) == 0 {
			kept = append(kept, t)
		}
	}
	if !found {
		return fmt.Errorf("%w %s", ErrUnknownProject, project)
	}
	m.Topics = kept
	return nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
