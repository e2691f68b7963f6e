// Package kconfig regenerates kernel defconfigs from the config options
// declared by topic branches and verifies the regenerated files actually
// carry the requested values.
package kconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/papapumpkin/mergetrain/internal/manifest"
)

// NotFound is reported for an option absent from a defconfig.
const NotFound = "Not Found"

var notSet = regexp.MustCompile(`^#(.*) is not set`)

// WriteFragment writes a config fragment: for each branch that declares
// options, a "#Branch: <name> <repourl> <branch>" header followed by its
// NAME=value lines.
func WriteFragment(w io.Writer, topics []*manifest.TopicBranch) error {
	bw := bufio.NewWriter(w)
	for _, t := range topics {
		if len(t.ConfigOptions) == 0 {
			continue
		}
		fmt.Fprintf(bw, "#Branch: %s %s %s\n", t.Name, t.RepoURL, t.Branch)
		for _, o := range t.ConfigOptions {
			fmt.Fprintf(bw, "%s=%s\n", o.Name, o.Value)
		}
	}
	return bw.Flush()
}

// ParseLine extracts a setting from one defconfig line. "# CONFIG_X is not
// set" yields CONFIG_X=n; "NAME=value" yields the trimmed pair.
func ParseLine(line string) (name, value string, ok bool) {
	if m := notSet.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), "n", true
	}
	parts := strings.Split(line, "=")
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// Parse reads every setting from r. Later lines win.
func Parse(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if name, value, ok := ParseLine(sc.Text()); ok {
			values[name] = value
		}
	}
	return values, sc.Err()
}

// ParseFile parses the defconfig at path.
func ParseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Mismatch is an option whose regenerated value differs from the request.
type Mismatch struct {
	Name     string
	Expected string
	Value    string
	Branches string
}

// Check compares parsed defconfig values with the requested options, in
// option order.
func Check(values map[string]string, set *manifest.OptionSet) []Mismatch {
	var out []Mismatch
	for _, name := range set.Names() {
		expected := set.Expected(name)
		value, ok := values[name]
		if !ok {
			value = NotFound
		}
		if strings.TrimSpace(expected) == strings.TrimSpace(value) {
			continue
		}
		out = append(out, Mismatch{
			Name:     name,
			Expected: expected,
			Value:    value,
			Branches: strings.Join(set.Branches(name), ","),
		})
	}
	return out
}

// MismatchTable renders the mismatches found in one defconfig.
func MismatchTable(file string, ms []Mismatch) string {
	tw := table.NewWriter()
	tw.SetTitle("Filename: " + file)
	tw.AppendHeader(table.Row{"name", "expected", "value", "branches"})
	for _, m := range ms {
		tw.AppendRow(table.Row{m.Name, m.Expected, m.Value, m.Branches})
	}
	return tw.Render()
}
