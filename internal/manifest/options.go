package manifest

import (
	"fmt"
	"strings"
	"unicode"
)

// OptionValue is one branch's setting for a config option.
type OptionValue struct {
	Value  string
	Branch string
}

// OptionSet is an ordered multimap from option name to every value that
// enabled branches assign to it. Names keep first-seen order and values keep
// manifest order, so fragments and reports are reproducible.
type OptionSet struct {
	names  []string
	values map[string][]OptionValue
}

// CollectOptions gathers config options from the enabled topic branches in
// manifest order.
func CollectOptions(topics []*TopicBranch) *OptionSet {
	s := &OptionSet{values: make(map[string][]OptionValue)}
	for _, t := range topics {
		for _, opt := range t.ConfigOptions {
			s.Add(opt.Name, opt.Value, t.Name)
		}
	}
	return s
}

// Add records that branch sets name to value.
func (s *OptionSet) Add(name, value, branch string) {
	if s.values == nil {
		s.values = make(map[string][]OptionValue)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = append(s.values[name], OptionValue{Value: value, Branch: branch})
}

// Names returns option names in first-seen order.
func (s *OptionSet) Names() []string {
	return s.names
}

// Values returns every recorded value for name in manifest order.
func (s *OptionSet) Values(name string) []OptionValue {
	return s.values[name]
}

// Branches returns the branches that set name, in manifest order.
func (s *OptionSet) Branches(name string) []string {
	var out []string
	for _, v := range s.values[name] {
		out = append(out, v.Branch)
	}
	return out
}

// Expected returns the value the first branch assigned to name.
func (s *OptionSet) Expected(name string) string {
	vals := s.values[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0].Value
}

// Validate reports every casing violation and every option that two
// branches set to different values. A name must be entirely uppercase
// regardless of its value; a value must not be uppercase (use y/n/m, not Y).
func (s *OptionSet) Validate() []ValidationError {
	var errs []ValidationError
	for _, name := range s.names {
		vals := s.values[name]
		if strings.ToUpper(name) != name {
			errs = append(errs, ValidationError{
				Branch: vals[0].Branch,
				Field:  "config_options",
				Err:    fmt.Errorf("%w: %s", ErrOptionNameCase, name),
			})
		}
		for i, v := range vals {
			if isUpper(v.Value) {
				errs = append(errs, ValidationError{
					Branch: v.Branch,
					Field:  "config_options",
					Err:    fmt.Errorf("%w: %s=%s", ErrOptionValueCase, name, v.Value),
				})
			}
			if i > 0 && v.Value != vals[0].Value {
				errs = append(errs, ValidationError{
					Branch: v.Branch,
					Field:  "config_options",
					Err: fmt.Errorf("%w: %s is set to %s by %q and %s by %q",
						ErrOptionConflict, name, v.Value, v.Branch, vals[0].Value, vals[0].Branch),
				})
			}
		}
	}
	return errs
}

// isUpper reports whether s has at least one cased letter and no lowercase
// letters.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
