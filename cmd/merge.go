package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papapumpkin/mergetrain/internal/audit"
	"github.com/papapumpkin/mergetrain/internal/fsutil"
	"github.com/papapumpkin/mergetrain/internal/kconfig"
	"github.com/papapumpkin/mergetrain/internal/manifest"
	"github.com/papapumpkin/mergetrain/internal/merge"
	"github.com/papapumpkin/mergetrain/internal/reconcile"
	"github.com/papapumpkin/mergetrain/internal/session"
	"github.com/papapumpkin/mergetrain/internal/telemetry"
	"github.com/papapumpkin/mergetrain/internal/vcs"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Resolve, fetch and merge every enabled topic branch",
	Long: `Merge resolves each enabled topic branch against its remote, fetches the
remotes whose branches moved, resets the work branch to the upstream base and
merges the topic branches in manifest order. When a merge stops on a conflict,
resolve and commit it, then run 'mergetrain merge --continue'.`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.BoolP("skip-fetch", "s", false, "use local tracking refs without contacting remotes")
	f.BoolP("gen-manifest", "g", false, "stop after writing the resolved manifest")
	f.BoolP("continue", "c", false, "continue a halted merge using the resolved manifest and patch-manifest")
	f.BoolP("master", "m", false, "use the HEAD of the master branch instead of the latest tag")
	f.BoolP("regen-config", "r", false, "regenerate Kconfig defconfigs after the merge")
	f.String("branding", "", "branding used in generated commit messages")
	f.String("policy", "", "conflict policy: trust-empty-rerere or strict")
	addSelectionFlags(mergeCmd)

	_ = viper.BindPFlag("branding", f.Lookup("branding"))
	_ = viper.BindPFlag("conflict_policy", f.Lookup("policy"))

	rootCmd.AddCommand(mergeCmd)
}

type mergeFlags struct {
	skipFetch   bool
	genManifest bool
	cont        bool
	master      bool
	regen       bool
	project     string
	sel         manifest.Selection
}

func readMergeFlags(cmd *cobra.Command) mergeFlags {
	var mf mergeFlags
	mf.skipFetch, _ = cmd.Flags().GetBool("skip-fetch")
	mf.genManifest, _ = cmd.Flags().GetBool("gen-manifest")
	mf.cont, _ = cmd.Flags().GetBool("continue")
	mf.master, _ = cmd.Flags().GetBool("master")
	mf.regen, _ = cmd.Flags().GetBool("regen-config")
	mf.project, mf.sel = selectionFromFlags(cmd)
	return mf
}

func runMerge(cmd *cobra.Command, _ []string) error {
	mf := readMergeFlags(cmd)
	mode := session.Fresh
	if mf.cont {
		mode = session.Continue
	}
	sess, err := openSession(mode)
	if err != nil {
		return err
	}
	defer sess.Close()

	policy, err := merge.ParsePolicy(sess.Config.ConflictPolicy)
	if err != nil {
		return err
	}

	ctx, cancel := setupSignalContext(sess.UI)
	defer cancel()

	sess.Log.Info("merge started", zap.Strings("args", os.Args))
	sess.UI.Banner(sess.Config.Branding)
	_ = sess.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunStart, Data: map[string]any{
		"continue": mf.cont, "project": mf.project, "policy": string(policy),
	}})

	git, err := vcs.NewGitCLI(ctx, sess.Config.WorkDir, sess.Log)
	if err != nil {
		return err
	}
	p := &pipeline{sess: sess, git: git, flags: mf, policy: policy}
	err = p.run(ctx)

	done := map[string]any{"merged": p.merged}
	if err != nil {
		done["error"] = err.Error()
		sess.Log.Error("merge failed", zap.Error(err))
	}
	_ = sess.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunDone, Data: done})
	return err
}

// pipeline carries one merge invocation through its stages.
type pipeline struct {
	sess   *session.Session
	git    *vcs.GitCLI
	flags  mergeFlags
	policy merge.ConflictPolicy
	merged int
}

func (p *pipeline) run(ctx context.Context) error {
	var (
		m   *manifest.Manifest
		err error
	)
	if p.flags.cont {
		m, err = p.resume()
	} else {
		m, err = p.prepare(ctx)
	}
	if err != nil || m == nil {
		return err
	}

	topics := m.Enabled()
	engine := &merge.Engine{
		Git:       p.git,
		Patch:     p.sess.Patch,
		Snapshots: p.sess.Snapshots,
		Telemetry: p.sess.Telemetry,
		Report:    p.sess.UI,
		Log:       p.sess.Log,
	}
	if !p.flags.cont {
		if err := engine.Reset(ctx, p.sess.Config.WorkBranch, &m.Master); err != nil {
			return err
		}
	}

	recorded, err := merge.ReadPatchManifest(p.sess.PatchPath)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, topics, merge.Options{
		Continue:    p.flags.cont,
		Recorded:    recorded,
		Branding:    p.sess.Config.Branding,
		JiraBaseURL: p.sess.Config.JiraBaseURL,
		Policy:      p.policy,
	})
	p.merged = len(res.Merged)
	if syncErr := p.sess.SyncPatch(); syncErr != nil && err == nil {
		err = syncErr
	}
	if err != nil {
		return err
	}
	p.sess.UI.MergeSucceeded(len(res.Merged), len(res.Skipped))

	if p.flags.cont && len(res.Merged) == 0 {
		released, err := merge.HeadIsRelease(ctx, p.git, "HEAD", p.sess.Config.Marker())
		if err != nil {
			return fmt.Errorf("inspecting HEAD: %w", err)
		}
		if released {
			p.sess.UI.Done("Release files are already committed; nothing to do")
			return nil
		}
	}

	var configFiles []string
	if p.flags.regen {
		configFiles, err = p.regen(ctx, topics)
		if err != nil {
			return err
		}
	}
	if err := p.release(ctx, m, configFiles); err != nil {
		return err
	}
	p.sess.UI.Done("Merge has completed without error")
	return nil
}

// prepare loads and filters the input manifest, resolves every revision,
// fetches what moved, selects the base and writes the resolved manifest.
// It returns a nil manifest when the run stops after manifest generation.
func (p *pipeline) prepare(ctx context.Context) (*manifest.Manifest, error) {
	cfg := p.sess.Config
	ui := p.sess.UI

	m, err := loadSelected(p.sess.Path(cfg.ManifestIn), p.flags.project, p.flags.sel, ui)
	if err != nil {
		return nil, err
	}
	if errs := manifest.Validate(m); len(errs) > 0 {
		ui.ValidationResult(cfg.ManifestIn, len(m.Enabled()), errs)
		return nil, manifest.Join(errs)
	}
	topics := m.Enabled()
	if err := manifest.Join(manifest.CollectOptions(topics).Validate()); err != nil {
		return nil, fmt.Errorf("config options: %w", err)
	}

	r := &reconcile.Resolver{Remotes: p.git, Refs: p.git, Workers: cfg.ResolveWorkers, Log: p.sess.Log}
	added, err := r.RegisterRemotes(ctx, m)
	if err != nil {
		return nil, err
	}
	for _, name := range added {
		ui.Info(name + " is not in remotes list, adding...")
	}

	var (
		remote   reconcile.RevisionMap
		failures reconcile.Failures
	)
	if !p.flags.skipFetch {
		ui.Step("Resolving remote branch heads")
		remote, failures = r.Resolve(ctx, topics)
		for key, ferr := range failures {
			ui.Warn(fmt.Sprintf("%s: %v", key, ferr))
			_ = p.sess.Telemetry.Branch(telemetry.KindResolveFailed, string(key), "", map[string]string{"error": ferr.Error()})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		local, err := reconcile.LocalTracking(ctx, p.git, topics)
		if err != nil {
			return nil, err
		}
		plan := reconcile.Plan(remote, local)
		if cfg.Verbose {
			ui.Block(reconcile.DiagnosticTable(topics, remote, local, failures))
		}
		_ = p.sess.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindFetchPlanned, Data: map[string]any{
			"stale": len(plan.Stale), "remotes": plan.Remotes,
		}})
		if plan.Empty() {
			ui.Info("No fetch needed.")
		} else {
			ui.Info("Fetching the following remotes:\n" + strings.Join(plan.Remotes, "\n"))
		}
		if err := reconcile.Fetch(ctx, p.git, plan); err != nil {
			return nil, err
		}
	}

	local, err := reconcile.LocalTracking(ctx, p.git, topics)
	if err != nil {
		return nil, err
	}
	if err := reconcile.AssignRevisions(topics, remote, local, failures); err != nil {
		return nil, err
	}

	ui.Step("Checking branches for previous release commits")
	if err := merge.CheckNotReleased(ctx, p.git, topics, cfg.UpstreamAuthor, cfg.Marker()); err != nil {
		return nil, err
	}

	ui.Step("Selecting the upstream base")
	base := reconcile.BaseOptions{SkipFetch: p.flags.skipFetch, BranchHead: p.flags.master}
	if err := reconcile.SetupBase(ctx, p.git, &m.Master, base); err != nil {
		return nil, err
	}
	_ = p.sess.Telemetry.Branch(telemetry.KindBaseSelected, m.Master.Name, m.Master.Revision(), map[string]string{"tag": m.Master.TagName()})

	opts := audit.LogOptions{Project: p.flags.project, JiraBaseURL: cfg.JiraBaseURL}
	if err := audit.WriteArtifacts(p.sess.Path(cfg.ManifestOut), p.sess.Path(cfg.ManifestLog), m, opts); err != nil {
		return nil, err
	}
	_ = p.sess.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindArtifacts, Data: []string{cfg.ManifestOut, cfg.ManifestLog}})

	if p.flags.genManifest {
		ui.Done("Manifest generation has completed")
		return nil, nil
	}
	return m, nil
}

// resume reloads the resolved manifest of a halted run and regenerates its
// manifest log.
func (p *pipeline) resume() (*manifest.Manifest, error) {
	cfg := p.sess.Config
	p.sess.UI.Step("Continuing merge with --continue")
	p.sess.Log.Info("continuing merge")

	path := p.sess.Path(cfg.ManifestOut)
	if !fsutil.Exists(path) {
		if moved := p.sess.Path(filepath.Join(cfg.ReleaseDir, filepath.Base(cfg.ManifestOut))); fsutil.Exists(moved) {
			path = moved
		}
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if err := manifest.Join(manifest.CollectOptions(m.Enabled()).Validate()); err != nil {
		return nil, fmt.Errorf("config options: %w", err)
	}
	opts := audit.LogOptions{Project: p.flags.project, JiraBaseURL: cfg.JiraBaseURL}
	if err := fsutil.WriteFile(p.sess.Path(cfg.ManifestLog), []byte(audit.RenderManifestLog(m, opts)), 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest log: %w", err)
	}
	return m, nil
}

// regen rebuilds the defconfigs and returns the config files to commit.
func (p *pipeline) regen(ctx context.Context, topics []*manifest.TopicBranch) ([]string, error) {
	k := p.sess.Config.Kconfig
	p.sess.UI.Step("Fragment has been written, running " + k.RegenCommand)
	r := &kconfig.Regenerator{
		Git:     p.git,
		WorkDir: p.sess.Config.WorkDir,
		Config: kconfig.Config{
			Dir:          k.Dir,
			Fragment:     k.Fragment,
			Defconfigs:   k.Defconfigs,
			RegenCommand: k.RegenCommand,
		},
		Log: p.sess.Log,
	}
	rep, err := r.Regen(ctx, topics)
	if err != nil {
		return nil, err
	}
	for _, f := range rep.Files {
		if len(f.Mismatches) == 0 {
			p.sess.UI.Info("Filename: " + f.File + ": all options set")
			continue
		}
		p.sess.UI.Block(kconfig.MismatchTable(f.File, f.Mismatches))
	}
	return rep.Changed, nil
}

func (p *pipeline) release(ctx context.Context, m *manifest.Manifest, configFiles []string) error {
	cfg := p.sess.Config
	rel := &audit.Release{
		Git:           p.git,
		WorkDir:       cfg.WorkDir,
		ReleaseDir:    cfg.ReleaseDir,
		ManifestJSON:  cfg.ManifestOut,
		ManifestLog:   cfg.ManifestLog,
		RunLog:        p.sess.LogPath,
		PatchManifest: cfg.PatchManifest,
		Readme:        cfg.ReleaseReadme,
		Localversion:  cfg.LocalversionFile,
		ConfigFiles:   configFiles,
		Branding:      cfg.Branding,
		Project:       p.flags.project,
		Maintainers:   cfg.Maintainers,
		Date:          time.Now(),
	}
	err := rel.Commit(ctx, m)
	if errors.Is(err, audit.ErrNoReleaseDir) {
		p.sess.UI.Warn(fmt.Sprintf("%s directory not found, skipping release commit", cfg.ReleaseDir))
		return nil
	}
	if err != nil {
		return err
	}
	_ = p.sess.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindReleaseCommit, Data: map[string]any{"config_files": configFiles}})
	return nil
}
