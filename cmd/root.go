package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mergetrain",
	Short: "Reproducible merge trains of kernel topic branches",
	Long: "Mergetrain resolves every topic branch in a manifest against its remote, " +
		"fetches only what changed, merges the branches onto an upstream base in manifest " +
		"order and commits an audit record of exactly what was merged.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default .mergetrain.yaml)")
	pf.BoolP("verbose", "v", false, "mirror the run log, including every git command, to the terminal")
	pf.String("manifest", "", "input manifest (default manifest_in.json)")
	pf.String("workdir", "", "kernel work tree to merge in (default .)")

	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("manifest_in", pf.Lookup("manifest"))
	_ = viper.BindPFlag("work_dir", pf.Lookup("workdir"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".mergetrain")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("MERGETRAIN")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}
