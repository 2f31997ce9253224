// Package editstream applies code edits streamed from a language model to
// the files they name.
//
// A run scans the stream for tagged blocks (or markdown code blocks),
// resolves each block against the current file content and commits the
// results through a Writer, recording them so the run can be undone.
package editstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sokinpui/editstream/internal/config"
	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/history"
	"github.com/sokinpui/editstream/internal/matcher"
	"github.com/sokinpui/editstream/internal/metrics"
	"github.com/sokinpui/editstream/internal/nvim"
	"github.com/sokinpui/editstream/internal/patch"
	"github.com/sokinpui/editstream/internal/source"
	"github.com/sokinpui/editstream/internal/workspace"
)

type ProgressUpdate func(current, total int)

type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	root     string
	stateDir string

	resolver *workspace.PathResolver
	matcher  *matcher.Matcher
	applier  *patch.Applier
	metrics  *metrics.Metrics
	source   func() (*source.Reader, error)
	writer   workspace.Writer
	stdout   io.Writer

	progressCallback ProgressUpdate
}

type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string { return e.Err.Error() }

func (e *DetailedError) Unwrap() error { return e.Err }

type Option func(*App)

func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRoot confines block paths to root and keeps history under it.
func WithRoot(root string) Option {
	return func(a *App) { a.root = root }
}

// WithWriter replaces the writer chosen by the config target.
func WithWriter(w workspace.Writer) Option {
	return func(a *App) { a.writer = w }
}

// WithSource replaces the stdin or clipboard source used by Execute.
func WithSource(open func() (*source.Reader, error)) Option {
	return func(a *App) { a.source = open }
}

// WithStdout sets where echoed text, diffs and corrected patches go.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: slog.Default(), stdout: os.Stdout, metrics: metrics.New()}
	for _, opt := range opts {
		opt(a)
	}

	pr, err := workspace.NewPathResolver(a.root)
	if err != nil {
		return nil, err
	}
	a.resolver = pr

	a.stateDir = cfg.StateDir
	if !filepath.IsAbs(a.stateDir) {
		base := a.root
		if base == "" {
			base = findGitRoot()
		}
		a.stateDir = filepath.Join(base, a.stateDir)
	}

	a.matcher = matcher.New(
		matcher.WithLogger(a.logger),
		matcher.WithCompact(cfg.Matcher.Compact),
	)
	a.applier = patch.NewApplier(
		patch.WithWindow(cfg.Patch.Window),
		patch.WithFuzz(cfg.Patch.Fuzz),
		patch.WithLogger(a.logger),
	)
	if a.source == nil {
		a.source = source.NewProvider(cfg.ChunkSize).Open
	}
	return a, nil
}

func findGitRoot() string {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err == nil {
		return strings.TrimSpace(string(out))
	}
	wd, _ := os.Getwd()
	return wd
}

func (a *App) SetProgressCallback(cb ProgressUpdate) { a.progressCallback = cb }

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Execute runs the mode selected by the config: undo, redo, diff
// correction, or applying the edits read from the source.
func (a *App) Execute(ctx context.Context) (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()

	start := time.Now()
	defer func() {
		a.metrics.ObserveRun(time.Since(start))
		if a.cfg.MetricsFile == "" {
			return
		}
		if werr := a.metrics.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			a.logger.Warn("Failed to write metrics", slog.String("file", a.cfg.MetricsFile), slog.Any("error", werr))
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastOperation(ctx)
	case a.cfg.Redo:
		return a.redoLastOperation(ctx)
	case a.cfg.OutputDiffFix:
		return a.fixAndPrintDiffs(ctx)
	default:
		return a.processSource(ctx)
	}
}

func (a *App) processSource(ctx context.Context) (Summary, error) {
	r, err := a.source()
	if err != nil {
		return Summary{Message: "Empty source"}, err
	}

	summary, err := a.Process(ctx, r.Chunks())
	if rerr := r.Err(); rerr != nil && err == nil {
		err = fmt.Errorf("failed to read source: %w", rerr)
	}
	return summary, err
}

// openWriter returns the writer for this run and a function releasing it.
func (a *App) openWriter(ctx context.Context) (workspace.Writer, func(), error) {
	if a.writer != nil {
		return a.writer, func() {}, nil
	}
	if a.cfg.Target == config.TargetNvim {
		w, err := nvim.New(ctx)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	}
	return workspace.DiskWriter{}, func() {}, nil
}

// flush saves buffered writes for writers that hold them.
func flush(w workspace.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (a *App) undoLastOperation(ctx context.Context) (Summary, error) {
	return a.replay(ctx, "Undone", history.ErrNothingToUndo, "No undo", (*history.Store).Undo)
}

func (a *App) redoLastOperation(ctx context.Context) (Summary, error) {
	return a.replay(ctx, "Redone", history.ErrNothingToRedo, "No redo", (*history.Store).Redo)
}

func (a *App) replay(
	ctx context.Context,
	done string,
	empty error,
	emptyMsg string,
	step func(*history.Store, context.Context, workspace.Writer) (history.Result, error),
) (Summary, error) {
	store, err := history.New(a.stateDir)
	if err != nil {
		return Summary{}, err
	}

	w, closeWriter, err := a.openWriter(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer closeWriter()

	res, err := step(store, ctx, w)
	if errors.Is(err, empty) {
		return Summary{Message: emptyMsg}, nil
	}
	if err != nil {
		return Summary{}, err
	}
	if err := flush(w); err != nil {
		return Summary{}, fmt.Errorf("failed to save buffers: %w", err)
	}

	return Summary{
		Modified:  a.relList(res.Restored),
		Removed:   a.relList(res.Removed),
		Failed:    a.relList(res.Failed),
		HistoryID: res.ID,
		Message:   done,
	}, nil
}

func (a *App) fixAndPrintDiffs(ctx context.Context) (Summary, error) {
	r, err := a.source()
	if err != nil {
		return Summary{Message: "Empty source"}, err
	}
	blocks, summary, err := a.collect(ctx, r.Chunks())
	if err != nil {
		return summary, err
	}

	ws := workspace.New(a.resolver)
	fixed := 0
	for _, t := range a.targets(blocks, &summary) {
		if t.block.Kind != edit.KindPatch {
			continue
		}
		rel := a.resolver.Rel(t.path)

		content, _, err := ws.Read(t.path)
		if err == nil {
			var doc *patch.Document
			if doc, err = patch.Parse(t.block.Content); err == nil {
				doc, err = a.applier.Correct(content, doc)
			}
			if err == nil {
				doc.OldName, doc.NewName = "a/"+rel, "b/"+rel
				fmt.Fprint(a.stdout, doc.String())
				fixed++
				continue
			}
		}
		summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", rel, err))
	}
	summary.Message = fmt.Sprintf("Corrected %d diff(s)", fixed)
	return summary, nil
}

func (a *App) reportProgress(current, total int) {
	if a.progressCallback != nil {
		a.progressCallback(current, total)
	}
}

func (a *App) relList(paths []string) []string {
	var res []string
	for _, p := range paths {
		res = append(res, a.resolver.Rel(p))
	}
	return res
}
