// Package manifest models the declarative description of a release: one
// master (base) branch and an ordered list of topic branches merged on top
// of it. The declared order of topic branches is significant and is never
// changed except by an explicit --only selection.
package manifest

import "fmt"

// Manifest is parsed from manifest_in.json (or .toml/.yaml) and, once
// resolved, written back out as manifest.json.
type Manifest struct {
	Master MasterBranch  `json:"master_branch" toml:"master_branch" yaml:"master_branch"`
	Topics []TopicBranch `json:"topic_branches" toml:"topic_branches" yaml:"topic_branches"`
}

// MasterBranch is the upstream base that topic branches are merged onto.
type MasterBranch struct {
	Name         string  `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	RepoURL      string  `json:"repourl" toml:"repourl" yaml:"repourl"`
	Branch       string  `json:"branch" toml:"branch" yaml:"branch"`
	Enabled      bool    `json:"enabled" toml:"enabled" yaml:"enabled"`
	StuckAtRef   string  `json:"stuck_at_ref" toml:"stuck_at_ref" yaml:"stuck_at_ref"`
	UseLatestTag bool    `json:"use_latest_tag" toml:"use_latest_tag" yaml:"use_latest_tag"`
	Tag          *string `json:"tag" toml:"tag,omitempty" yaml:"tag"`
	Rev          *string `json:"rev" toml:"rev,omitempty" yaml:"rev"`
}

// Contact is a name/email pair used for contributors and owners.
type Contact struct {
	Name  string `json:"name" toml:"name" yaml:"name"`
	Email string `json:"email" toml:"email" yaml:"email"`
}

// String formats the contact as "Name <email>".
func (c Contact) String() string {
	return fmt.Sprintf("%s <%s>", c.Name, c.Email)
}

// ConfigOption is a single kernel config option a branch requires.
type ConfigOption struct {
	Name  string `json:"name" toml:"name" yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// ProjectBranch overrides branch selection for a project-scoped merge.
type ProjectBranch struct {
	Enabled    bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Branch     string `json:"branch" toml:"branch" yaml:"branch"`
	StuckAtRef string `json:"stuck_at_ref" toml:"stuck_at_ref" yaml:"stuck_at_ref"`
}

// TopicBranch is one feature branch merged as part of a release.
type TopicBranch struct {
	Name          string         `json:"name" toml:"name" yaml:"name"`
	RepoURL       string         `json:"repourl" toml:"repourl" yaml:"repourl"`
	Branch        string         `json:"branch" toml:"branch" yaml:"branch"`
	Enabled       bool           `json:"enabled" toml:"enabled" yaml:"enabled"`
	StuckAtRef    string         `json:"stuck_at_ref" toml:"stuck_at_ref" yaml:"stuck_at_ref"`
	Rev           *string        `json:"rev" toml:"rev,omitempty" yaml:"rev"`
	Status        string         `json:"status" toml:"status" yaml:"status"`
	Description   string         `json:"description" toml:"description" yaml:"description"`
	Jira          string         `json:"jira" toml:"jira" yaml:"jira"`
	FeatureJiras  string         `json:"feature_jiras,omitempty" toml:"feature_jiras,omitempty" yaml:"feature_jiras,omitempty"`
	MailList      string         `json:"maillist,omitempty" toml:"maillist,omitempty" yaml:"maillist,omitempty"`
	Platforms     string         `json:"platforms,omitempty" toml:"platforms,omitempty" yaml:"platforms,omitempty"`
	BranchType    string         `json:"branch_type" toml:"branch_type" yaml:"branch_type"`
	Contributors  []Contact      `json:"contributor" toml:"contributor" yaml:"contributor"`
	IPOwners      []Contact      `json:"ip_owner" toml:"ip_owner" yaml:"ip_owner"`
	SDLContacts   []Contact      `json:"sdl_contact" toml:"sdl_contact" yaml:"sdl_contact"`
	ConfigOptions []ConfigOption `json:"config_options" toml:"config_options" yaml:"config_options"`

	// ProjectBranches is nil when the branch belongs to no project, empty
	// when it belongs to every project, and keyed by project otherwise.
	ProjectBranches map[string]ProjectBranch `json:"project_branches,omitempty" toml:"project_branches,omitempty" yaml:"project_branches,omitempty"`
}

// Key returns the composite remote/branch key for the topic branch.
func (t *TopicBranch) Key() Key {
	return KeyFor(t.RepoURL, t.Branch)
}

// Remote returns the sanitized git remote name for the topic branch.
func (t *TopicBranch) Remote() string {
	return SanitizeRemoteName(t.RepoURL)
}

// Pinned reports whether the branch is pinned to a fixed revision.
func (t *TopicBranch) Pinned() bool {
	return t.StuckAtRef != ""
}

// Revision returns the resolved revision, or "" if not yet resolved.
func (t *TopicBranch) Revision() string {
	if t.Rev == nil {
		return ""
	}
	return *t.Rev
}

// SetRev records the resolved revision. A revision is fixed once per run;
// setting a different value afterwards returns ErrRevAlreadySet.
func (t *TopicBranch) SetRev(rev string) error {
	if t.Rev != nil && *t.Rev != rev {
		return fmt.Errorf("%w: %s is at %s, refusing %s", ErrRevAlreadySet, t.Name, *t.Rev, rev)
	}
	t.Rev = &rev
	return nil
}

// Remote returns the sanitized git remote name for the master branch.
func (b *MasterBranch) Remote() string {
	return SanitizeRemoteName(b.RepoURL)
}

// Revision returns the resolved base revision, or "".
func (b *MasterBranch) Revision() string {
	if b.Rev == nil {
		return ""
	}
	return *b.Rev
}

// TagName returns the resolved base tag, or "".
func (b *MasterBranch) TagName() string {
	if b.Tag == nil {
		return ""
	}
	return *b.Tag
}

// Enabled returns pointers to the enabled topic branches in manifest order.
func (m *Manifest) Enabled() []*TopicBranch {
	var out []*TopicBranch
	for i := range m.Topics {
		if m.Topics[i].Enabled {
			out = append(out, &m.Topics[i])
		}
	}
	return out
}

// Find returns the topic branch with the given name, or nil.
func (m *Manifest) Find(name string) *TopicBranch {
	for i := range m.Topics {
		if m.Topics[i].Name == name {
			return &m.Topics[i]
		}
	}
	return nil
}

// normalize replaces nil slices so encoded output is stable ([] not null).
func (m *Manifest) normalize() {
	for i := range m.Topics {
		t := &m.Topics[i]
		if t.Contributors == nil {
			t.Contributors = []Contact{}
		}
		if t.IPOwners == nil {
			t.IPOwners = []Contact{}
		}
		if t.SDLContacts == nil {
			t.SDLContacts = []Contact{}
		}
		if t.ConfigOptions == nil {
			t.ConfigOptions = []ConfigOption{}
		}
	}
	if m.Topics == nil {
		m.Topics = []TopicBranch{}
	}
}
