package kconfig

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/papapumpkin/mergetrain/internal/fsutil"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

// Config locates the kernel config files in the work tree.
type Config struct {
	// Dir holds the defconfigs, relative to the work tree.
	Dir string
	// Fragment is the file name of the generated fragment.
	Fragment   string
	Defconfigs []string
	// RegenCommand is run from the work tree after the fragment is in place.
	RegenCommand string
}

// FileReport is the validation of one regenerated defconfig.
type FileReport struct {
	File       string
	Mismatches []Mismatch
}

// Report is the outcome of a regeneration.
type Report struct {
	Files   []FileReport
	Changed []string
}

// Runner executes argv in dir and returns its combined output.
type Runner func(ctx context.Context, dir string, argv []string) ([]byte, error)

func execRunner(ctx context.Context, dir string, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Regenerator writes the fragment, runs the regen command and validates
// the result.
type Regenerator struct {
	Git     vcs.Committer
	WorkDir string
	Config  Config
	Run     Runner
	Log     *zap.Logger
}

// Regen regenerates configs for the enabled topics. The returned Report
// lists mismatches per defconfig and the config files that are untracked
// or modified, which the release commit should include.
func (r *Regenerator) Regen(ctx context.Context, topics []*manifest.TopicBranch) (*Report, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	run := r.Run
	if run == nil {
		run = execRunner
	}
	cfg := r.Config

	var frag bytes.Buffer
	if err := WriteFragment(&frag, topics); err != nil {
		return nil, err
	}
	staged := filepath.Join(r.WorkDir, cfg.Fragment)
	if err := fsutil.WriteFile(staged, frag.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing fragment: %w", err)
	}
	if err := os.Rename(staged, filepath.Join(r.WorkDir, cfg.Dir, cfg.Fragment)); err != nil {
		return nil, fmt.Errorf("moving fragment into %s: %w", cfg.Dir, err)
	}

	argv, err := shlex.Split(cfg.RegenCommand)
	if err != nil {
		return nil, fmt.Errorf("parsing regen command %q: %w", cfg.RegenCommand, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("regen command is empty")
	}
	out, err := run(ctx, r.WorkDir, argv)
	log.Info("regen", zap.Strings("argv", argv), zap.ByteString("output", out), zap.Error(err))
	if err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", cfg.RegenCommand, err, bytes.TrimSpace(out))
	}
	rep := &Report{}

	set := manifest.CollectOptions(topics)
	for _, name := range cfg.Defconfigs {
		values, err := ParseFile(filepath.Join(r.WorkDir, cfg.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		rep.Files = append(rep.Files, FileReport{File: name, Mismatches: Check(values, set)})
	}

	for _, name := range append([]string{cfg.Fragment}, cfg.Defconfigs...) {
		path := filepath.Join(cfg.Dir, name)
		changed, err := r.Git.Changed(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", path, err)
		}
		if changed {
			rep.Changed = append(rep.Changed, path)
		}
	}
	return rep, nil
}
