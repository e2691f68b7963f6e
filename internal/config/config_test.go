package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"WorkDir", cfg.WorkDir, "."},
		{"ManifestIn", cfg.ManifestIn, "manifest_in.json"},
		{"ManifestOut", cfg.ManifestOut, "manifest.json"},
		{"PatchManifest", cfg.PatchManifest, "patch-manifest"},
		{"ReleaseReadme", cfg.ReleaseReadme, "README.release"},
		{"LocalversionFile", cfg.LocalversionFile, "localversion-release"},
		{"WorkBranch", cfg.WorkBranch, "master"},
		{"Branding", cfg.Branding, "Mergetrain"},
		{"UpstreamAuthor", cfg.UpstreamAuthor, "Linus Torvalds"},
		{"ResolveWorkers", cfg.ResolveWorkers, 8},
		{"ConflictPolicy", cfg.ConflictPolicy, "trust-empty-rerere"},
		{"Verbose", cfg.Verbose, false},
		{"KconfigDir", cfg.Kconfig.Dir, "arch/x86/configs"},
		{"RegenCommand", cfg.Kconfig.RegenCommand, "./regen_configs.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{
			name:   "work_dir",
			envKey: "MERGETRAIN_WORK_DIR",
			envVal: "/tmp/linux",
			field:  func(c Config) any { return c.WorkDir },
			want:   "/tmp/linux",
		},
		{
			name:   "branding",
			envKey: "MERGETRAIN_BRANDING",
			envVal: "Kernel Next",
			field:  func(c Config) any { return c.Branding },
			want:   "Kernel Next",
		},
		{
			name:   "resolve_workers",
			envKey: "MERGETRAIN_RESOLVE_WORKERS",
			envVal: "3",
			field:  func(c Config) any { return c.ResolveWorkers },
			want:   3,
		},
		{
			name:   "conflict_policy",
			envKey: "MERGETRAIN_CONFLICT_POLICY",
			envVal: "strict",
			field:  func(c Config) any { return c.ConflictPolicy },
			want:   "strict",
		},
		{
			name:   "verbose",
			envKey: "MERGETRAIN_VERBOSE",
			envVal: "true",
			field:  func(c Config) any { return c.Verbose },
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			viper.SetEnvPrefix("MERGETRAIN")
			viper.AutomaticEnv()
			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			got := tt.field(cfg)
			if got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_Nested(t *testing.T) {
	resetViper()
	viper.Set("kconfig.defconfigs", []string{"a_defconfig", "b_defconfig"})

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a_defconfig", "b_defconfig"}, cfg.Kconfig.Defconfigs); diff != "" {
		t.Errorf("defconfigs (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	resetViper()
	base, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero workers", func(c *Config) { c.ResolveWorkers = 0 }, false},
		{"unknown policy", func(c *Config) { c.ConflictPolicy = "yolo" }, false},
		{"no manifest", func(c *Config) { c.ManifestIn = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestMarker(t *testing.T) {
	c := Config{Branding: "Kernel Next"}
	if got := c.Marker(); got != "Kernel Next: Add release files" {
		t.Errorf("Marker() = %q", got)
	}
	c.ReleaseMarker = "custom"
	if got := c.Marker(); got != "custom" {
		t.Errorf("override Marker() = %q", got)
	}
}
