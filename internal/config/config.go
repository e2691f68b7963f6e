package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// KconfigConfig locates the kernel config files regenerated after a merge.
type KconfigConfig struct {
	Dir          string   `mapstructure:"dir"`
	Fragment     string   `mapstructure:"fragment"`
	Defconfigs   []string `mapstructure:"defconfigs"`
	RegenCommand string   `mapstructure:"regen_command"`
}

// Config holds all runtime configuration for a merge train run.
// Values are populated from .mergetrain.yaml, MERGETRAIN_* env vars, and CLI flags.
type Config struct {
	WorkDir          string        `mapstructure:"work_dir"`
	ManifestIn       string        `mapstructure:"manifest_in"`
	ManifestOut      string        `mapstructure:"manifest_out"`
	ManifestLog      string        `mapstructure:"manifest_log"`
	PatchManifest    string        `mapstructure:"patch_manifest"`
	LogPrefix        string        `mapstructure:"log_prefix"`
	TelemetryFile    string        `mapstructure:"telemetry_file"`
	ConflictDir      string        `mapstructure:"conflict_dir"`
	ReleaseDir       string        `mapstructure:"release_dir"`
	ReleaseReadme    string        `mapstructure:"release_readme"`
	LocalversionFile string        `mapstructure:"localversion_file"`
	WorkBranch       string        `mapstructure:"work_branch"`
	Branding         string        `mapstructure:"branding"`
	JiraBaseURL      string        `mapstructure:"jira_base_url"`
	UpstreamAuthor   string        `mapstructure:"upstream_author"`
	ReleaseMarker    string        `mapstructure:"release_marker"`
	Maintainers      string        `mapstructure:"maintainers"`
	ResolveWorkers   int           `mapstructure:"resolve_workers"`
	ConflictPolicy   string        `mapstructure:"conflict_policy"`
	Verbose          bool          `mapstructure:"verbose"`
	Kconfig          KconfigConfig `mapstructure:"kconfig"`
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("work_dir", ".")
	viper.SetDefault("manifest_in", "manifest_in.json")
	viper.SetDefault("manifest_out", "manifest.json")
	viper.SetDefault("manifest_log", "manifest")
	viper.SetDefault("patch_manifest", "patch-manifest")
	viper.SetDefault("log_prefix", "mergetrain")
	viper.SetDefault("telemetry_file", ".mergetrain/telemetry.jsonl")
	viper.SetDefault("conflict_dir", ".mergetrain/conflicts")
	viper.SetDefault("release_dir", "eywa")
	viper.SetDefault("release_readme", "README.release")
	viper.SetDefault("localversion_file", "localversion-release")
	viper.SetDefault("work_branch", "master")
	viper.SetDefault("branding", "Mergetrain")
	viper.SetDefault("jira_base_url", "")
	viper.SetDefault("upstream_author", "Linus Torvalds")
	viper.SetDefault("release_marker", "")
	viper.SetDefault("maintainers", "")
	viper.SetDefault("resolve_workers", 8)
	viper.SetDefault("conflict_policy", "trust-empty-rerere")
	viper.SetDefault("verbose", false)
	viper.SetDefault("kconfig.dir", "arch/x86/configs")
	viper.SetDefault("kconfig.fragment", "mergetrain_config_options.config")
	viper.SetDefault("kconfig.defconfigs", []string{})
	viper.SetDefault("kconfig.regen_command", "./regen_configs.sh")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values no run could use.
func (c Config) Validate() error {
	var errs []error
	if c.ResolveWorkers < 1 {
		errs = append(errs, fmt.Errorf("%w: resolve_workers must be positive, got %d", ErrInvalid, c.ResolveWorkers))
	}
	switch c.ConflictPolicy {
	case "", "trust-empty-rerere", "strict":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown conflict_policy %q", ErrInvalid, c.ConflictPolicy))
	}
	if c.ManifestIn == "" || c.ManifestOut == "" {
		errs = append(errs, fmt.Errorf("%w: manifest_in and manifest_out are required", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Marker is the release commit marker, derived from the branding unless
// release_marker overrides it.
func (c Config) Marker() string {
	if c.ReleaseMarker != "" {
		return c.ReleaseMarker
	}
	return c.Branding + ": Add release files"
}
