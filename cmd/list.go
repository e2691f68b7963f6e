package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/mergetrain/internal/audit"
	"github.com/papapumpkin/mergetrain/internal/config"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/ui"
	"github.com/papapumpkin/mergetrain/internal/watch"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List manifest branches with their remote and status",
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("repos", false, "show repository URL and branch instead of the git remote")
	listCmd.Flags().Bool("watch", false, "re-render whenever the manifest changes")
	listCmd.Flags().StringP("project", "p", "", "restrict to branches of a project-specific merge")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	printer := ui.New()
	repos, _ := cmd.Flags().GetBool("repos")
	watching, _ := cmd.Flags().GetBool("watch")
	project, _ := cmd.Flags().GetString("project")
	path := inWorkDir(cfg, cfg.ManifestIn)

	render := func(m *manifest.Manifest) error {
		if project != "" {
			if err := m.ApplyProject(project); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), audit.RenderListing(m, repos))
		return nil
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if err := render(m); err != nil {
		return err
	}
	if !watching {
		return nil
	}

	w, err := watch.NewWatcher(path)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := setupSignalContext(printer)
	defer cancel()
	printer.Info("watching " + path + " (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-w.Changes:
			if c.Err != nil {
				printer.Warn(c.Err.Error())
				continue
			}
			if err := render(c.Manifest); err != nil {
				printer.Warn(err.Error())
			}
		}
	}
}
