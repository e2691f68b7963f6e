// Package session owns the per-run resources of a merge: the dated run log,
// the patch-manifest, the telemetry stream, the conflict snapshot store and
// the operator printer. Commands open one Session and defer its Close.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/papapumpkin/mergetrain/internal/config"
	"github.com/papapumpkin/mergetrain/internal/conflict"
	"github.com/papapumpkin/mergetrain/internal/telemetry"
	"github.com/papapumpkin/mergetrain/internal/ui"
)

// Mode selects how the patch-manifest is opened.
type Mode int

const (
	// Fresh truncates the patch-manifest.
	Fresh Mode = iota
	// Continue appends to the existing patch-manifest.
	Continue
	// ReadOnly opens no patch-manifest.
	ReadOnly
)

// Session is the run context shared by one command invocation.
type Session struct {
	Config    config.Config
	RunID     string
	Log       *zap.Logger
	LogPath   string
	Patch     io.Writer
	PatchPath string
	Telemetry *telemetry.Emitter
	Snapshots *conflict.Store
	UI        *ui.Printer

	logFile   *os.File
	patchFile *os.File
	closed    bool
}

// Options tune Open for tests and non-interactive callers.
type Options struct {
	Now    func() time.Time
	Stderr io.Writer
}

// LogFileName is the dated run log name for prefix.
func LogFileName(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-merge-%s.log", prefix, day.Format("2006-01-02"))
}

// Open creates every run resource under cfg.WorkDir. On error anything
// already opened is closed again.
func Open(cfg config.Config, mode Mode, opts Options) (_ *Session, err error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	s := &Session{Config: cfg, RunID: uuid.NewString(), UI: ui.NewWriter(stderr)}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.LogPath = s.Path(LogFileName(cfg.LogPrefix, now()))
	s.logFile, err = os.OpenFile(s.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	s.Log = newLogger(s.logFile, stderr, cfg.Verbose).With(zap.String("run", s.RunID))

	if mode != ReadOnly {
		flags := os.O_CREATE | os.O_WRONLY
		if mode == Continue {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		s.PatchPath = s.Path(cfg.PatchManifest)
		s.patchFile, err = os.OpenFile(s.PatchPath, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening patch-manifest: %w", err)
		}
		s.Patch = s.patchFile
	}

	if cfg.TelemetryFile != "" {
		path := s.Path(cfg.TelemetryFile)
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating telemetry dir: %w", err)
		}
		s.Telemetry, err = telemetry.NewEmitter(path, s.RunID)
		if err != nil {
			return nil, err
		}
	}

	if cfg.ConflictDir != "" {
		s.Snapshots, err = conflict.NewStore(s.Path(cfg.ConflictDir))
		if err != nil {
			return nil, fmt.Errorf("opening conflict store: %w", err)
		}
	}
	return s, nil
}

// newLogger writes console-encoded entries to the run log and, when
// verbose, mirrors them to stderr.
func newLogger(file, stderr io.Writer, verbose bool) *zap.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(file), zapcore.DebugLevel)
	if verbose {
		core = zapcore.NewTee(core, zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(stderr), zapcore.DebugLevel))
	}
	return zap.New(core)
}

// Path resolves p against the work directory.
func (s *Session) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Config.WorkDir, p)
}

// SyncPatch flushes the patch-manifest to disk.
func (s *Session) SyncPatch() error {
	if s.patchFile == nil {
		return nil
	}
	return s.patchFile.Sync()
}

// Close releases every resource. Calling it again is a no-op.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.Log != nil {
		_ = s.Log.Sync()
	}
	if s.patchFile != nil {
		errs = append(errs, s.patchFile.Close())
	}
	errs = append(errs, s.Telemetry.Close())
	if s.logFile != nil {
		errs = append(errs, s.logFile.Close())
	}
	return errors.Join(errs...)
}
