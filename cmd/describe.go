package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/mergetrain/internal/config"
	"github.com/papapumpkin/mergetrain/internal/ui"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Run git describe on the tracking ref of every enabled branch",
	RunE:  runDescribe,
}

func init() {
	addSelectionFlags(describeCmd)
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	printer := ui.New()
	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	project, sel := selectionFromFlags(cmd)
	m, err := loadSelected(inWorkDir(cfg, cfg.ManifestIn), project, sel, printer)
	if err != nil {
		return err
	}
	git, err := vcs.NewGitCLI(ctx, cfg.WorkDir, nil)
	if err != nil {
		return err
	}
	for _, t := range m.Enabled() {
		ref := string(t.Key())
		desc, err := git.Describe(ctx, ref)
		if err != nil {
			printer.Warn(fmt.Sprintf("%s: %v", t.Name, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", t.Name, desc)
	}
	return nil
}
