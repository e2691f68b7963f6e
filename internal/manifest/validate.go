package manifest

import "fmt"

// Validate checks the fields the merge needs: every enabled branch has a
// name, repository and branch, and enabled names are unique. Disabled
// entries are not checked.
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError

	if m.Master.RepoURL == "" {
		errs = append(errs, ValidationError{
			Field: "master_branch.repourl",
			Err:   fmt.Errorf("%w: master_branch.repourl", ErrMissingField),
		})
	}
	if m.Master.Branch == "" && m.Master.StuckAtRef == "" && !m.Master.UseLatestTag {
		errs = append(errs, ValidationError{
			Field: "master_branch.branch",
			Err:   fmt.Errorf("%w: master_branch.branch", ErrMissingField),
		})
	}

	seen := make(map[string]bool)
	for i, t := range m.Topics {
		if !t.Enabled {
			continue
		}
		if t.Name == "" {
			errs = append(errs, ValidationError{
				Field: "name",
				Err:   fmt.Errorf("%w: name of topic_branches[%d]", ErrMissingField, i),
			})
			continue
		}
		if seen[t.Name] {
			errs = append(errs, ValidationError{
				Branch: t.Name,
				Field:  "name",
				Err:    fmt.Errorf("%w: %q", ErrDuplicateName, t.Name),
			})
		}
		seen[t.Name] = true

		if t.RepoURL == "" {
			errs = append(errs, ValidationError{
				Branch: t.Name,
				Field:  "repourl",
				Err:    fmt.Errorf("%w: repourl", ErrMissingField),
			})
		}
		if t.Branch == "" && !t.Pinned() {
			errs = append(errs, ValidationError{
				Branch: t.Name,
				Field:  "branch",
				Err:    fmt.Errorf("%w: branch", ErrMissingField),
			})
		}
	}
	return errs
}
