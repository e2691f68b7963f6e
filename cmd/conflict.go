package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/mergetrain/internal/config"
	"github.com/papapumpkin/mergetrain/internal/conflict"
)

var conflictCmd = &cobra.Command{
	Use:   "conflict <branch>",
	Short: "Show the latest conflict snapshot recorded for a topic branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runConflict,
}

func init() {
	conflictCmd.Flags().Bool("diff", false, "also print the working tree diff captured at the halt")
	rootCmd.AddCommand(conflictCmd)
}

func runConflict(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := conflict.NewStore(inWorkDir(cfg, cfg.ConflictDir))
	if err != nil {
		return err
	}
	id, snap, err := store.Latest(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "snapshot: %s\n", id)
	fmt.Fprintf(out, "object:   %s\n", store.Path(id))
	fmt.Fprintf(out, "branch:   %s %s\n", snap.Branch, snap.RepoURL)
	fmt.Fprintf(out, "rev:      %s\n", snap.Rev)
	fmt.Fprintf(out, "halted:   %s\n", snap.At.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "unmerged: %s\n", strings.Join(snap.Unmerged, " "))
	if s := strings.TrimSpace(snap.Rerere); s != "" {
		fmt.Fprintf(out, "\nrerere status:\n%s\n", s)
	}
	if s := strings.TrimSpace(snap.Status); s != "" {
		fmt.Fprintf(out, "\ngit status:\n%s\n", s)
	}
	if showDiff, _ := cmd.Flags().GetBool("diff"); showDiff && snap.Diff != "" {
		fmt.Fprintf(out, "\n%s", snap.Diff)
	}
	return nil
}
