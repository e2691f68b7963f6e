package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/mergetrain/internal/config"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifest and its config options without touching the work tree",
	RunE:  runValidate,
}

func init() {
	addSelectionFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	printer := ui.New()
	cfg, err := config.Load()
	if err != nil {
		printer.Error(err.Error())
		return err
	}
	project, sel := selectionFromFlags(cmd)
	m, err := loadSelected(inWorkDir(cfg, cfg.ManifestIn), project, sel, printer)
	if err != nil {
		printer.Error(err.Error())
		return err
	}

	errs := manifest.Validate(m)
	errs = append(errs, manifest.CollectOptions(m.Enabled()).Validate()...)
	printer.ValidationResult(cfg.ManifestIn, len(m.Enabled()), errs)
	if len(errs) > 0 {
		return fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	return nil
}
