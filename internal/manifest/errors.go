package manifest

import (
	"errors"
	"fmt"
)

// Sentinel errors for manifest loading, selection and validation.
var (
	// ErrNoManifest indicates the manifest file does not exist.
	ErrNoManifest = errors.New("manifest not found")
	// ErrUnknownFormat indicates the manifest extension is not json, toml or yaml.
	ErrUnknownFormat = errors.New("unknown manifest format")
	// ErrUnknownBranch indicates a selection list names a branch not in the manifest.
	ErrUnknownBranch = errors.New("not a valid branch")
	// ErrUnknownProject indicates no branch declares the requested project.
	ErrUnknownProject = errors.New("could not find project")
	// ErrDuplicateName indicates two enabled branches share a name.
	ErrDuplicateName = errors.New("duplicate branch name")
	// ErrMissingField indicates a required field is empty.
	ErrMissingField = errors.New("required field missing")
	// ErrRevAlreadySet indicates an attempt to change a resolved revision.
	ErrRevAlreadySet = errors.New("revision already resolved")
	// ErrOptionConflict indicates two branches set one option to different values.
	ErrOptionConflict = errors.New("option set by two different branches")
	// ErrOptionNameCase indicates a config option name is not all uppercase.
	ErrOptionNameCase = errors.New("config option name is not all uppercase")
	// ErrOptionValueCase indicates a config option value is uppercase (e.g. "Y").
	ErrOptionValueCase = errors.New("config option value is uppercase")
)

// ValidationError records a validation problem with branch context.
type ValidationError struct {
	Branch string
	Field  string
	Err    error
}

// Error returns a human-readable string including the branch name.
func (e *ValidationError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("branch %s: %v", e.Branch, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Join folds a list of validation errors into one error, or nil.
func Join(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	all := make([]error, len(errs))
	for i := range errs {
		all[i] = &errs[i]
	}
	return errors.Join(all...)
}
