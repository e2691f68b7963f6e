package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/papapumpkin/mergetrain/internal/manifest"
)

// ANSI color codes.
const (
	reset   = "\033[0m"
	bold    = "\033[1m"
	dim     = "\033[2m"
	yellow  = "\033[33m"
	green   = "\033[32m"
	red     = "\033[31m"
	cyan    = "\033[36m"
	magenta = "\033[35m"
)

// Printer writes operator-facing progress to stderr.
type Printer struct {
	w io.Writer
}

func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Banner(branding string) {
	fmt.Fprintln(p.w, bold+cyan+"── mergetrain "+reset+dim+branding+reset)
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, red+bold+"error: "+reset+"%s\n", msg)
}

func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.w, yellow+bold+"warning: "+reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(p.w, dim+"%s"+reset+"\n", msg)
}

// Step announces a pipeline stage.
func (p *Printer) Step(msg string) {
	fmt.Fprintf(p.w, cyan+"◆ "+reset+"%s\n", msg)
}

// Block prints preformatted text such as a rendered table.
func (p *Printer) Block(text string) {
	fmt.Fprintln(p.w, strings.TrimRight(text, "\n"))
}

func (p *Printer) Notes(notes []string) {
	for _, n := range notes {
		fmt.Fprintf(p.w, magenta+"• "+reset+"%s\n", n)
	}
}

func (p *Printer) Merging(name, repoURL, branch, rev string) {
	fmt.Fprintf(p.w, bold+"▶ Merging %s"+reset+" %s %s "+dim+"%s"+reset+"\n", name, repoURL, branch, rev)
}

func (p *Printer) Skipping(name string) {
	fmt.Fprintf(p.w, dim+"- Skipping %s since patch-manifest says it is merged"+reset+"\n", name)
}

func (p *Printer) RerereResolved(name string) {
	fmt.Fprintf(p.w, yellow+"↻ git rerere handled merge of %s"+reset+"\n", name)
}

func (p *Printer) Halted(name string, err error) {
	fmt.Fprintf(p.w, red+bold+"✗ merge of %s halted"+reset+"\n%v\n", name, err)
}

func (p *Printer) MergeSucceeded(merged, skipped int) {
	fmt.Fprintf(p.w, green+bold+"✓ Merge succeeded"+reset+" "+dim+"(merged: %d, skipped: %d)"+reset+"\n", merged, skipped)
}

// ValidationResult reports manifest and config-option validation.
func (p *Printer) ValidationResult(path string, branches int, errs []manifest.ValidationError) {
	if len(errs) == 0 {
		fmt.Fprintf(p.w, green+bold+"✓ manifest %q"+reset+": %d enabled branch(es), no errors\n", path, branches)
		return
	}
	fmt.Fprintf(p.w, red+bold+"✗ manifest %q"+reset+": %d error(s):\n", path, len(errs))
	for _, e := range errs {
		fmt.Fprintf(p.w, "  "+red+"• "+reset+"%s\n", e.Error())
	}
}

func (p *Printer) Done(msg string) {
	fmt.Fprintf(p.w, green+bold+"✓ "+reset+"%s\n", msg)
}
