package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/mergetrain/internal/config"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/session"
	"github.com/papapumpkin/mergetrain/internal/ui"
)

// setupSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Info("\nshutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// addSelectionFlags registers the branch filter flags shared by merge,
// list and describe.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("project", "p", "", "restrict to branches of a project-specific merge")
	cmd.Flags().StringSliceP("disable", "b", nil, "comma separated branches not to merge even if enabled")
	cmd.Flags().StringSliceP("enable", "e", nil, "comma separated branches to enable if disabled in the manifest")
	cmd.Flags().StringSliceP("only", "w", nil, "comma separated branches to merge exclusively, in this order")
}

func selectionFromFlags(cmd *cobra.Command) (string, manifest.Selection) {
	project, _ := cmd.Flags().GetString("project")
	var sel manifest.Selection
	sel.Disable, _ = cmd.Flags().GetStringSlice("disable")
	sel.Enable, _ = cmd.Flags().GetStringSlice("enable")
	sel.Only, _ = cmd.Flags().GetStringSlice("only")
	return project, sel
}

// loadSelected reads the input manifest and applies the project scope and
// the branch filters, printing one note per change.
func loadSelected(path, project string, sel manifest.Selection, printer *ui.Printer) (*manifest.Manifest, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if project != "" {
		if err := m.ApplyProject(project); err != nil {
			return nil, err
		}
	}
	notes, err := m.Apply(sel)
	if err != nil {
		return nil, err
	}
	printer.Notes(notes)
	return m, nil
}

// openSession loads the configuration and opens the run resources.
func openSession(mode session.Mode) (*session.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return session.Open(cfg, mode, session.Options{})
}

// inWorkDir resolves p against the configured work tree.
func inWorkDir(cfg config.Config, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.WorkDir, p)
}
