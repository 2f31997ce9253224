package editstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sokinpui/editstream/internal/config"
	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/history"
	"github.com/sokinpui/editstream/internal/metrics"
	"github.com/sokinpui/editstream/internal/patch"
	"github.com/sokinpui/editstream/internal/scanner"
	"github.com/sokinpui/editstream/internal/workspace"
)

var (
	ErrLazyEdit       = errors.New("new file contains placeholders for omitted code")
	ErrMissingFile    = errors.New("file does not exist")
	ErrUnmatchedPairs = errors.New("some SEARCH/REPLACE pairs did not match")
)

// target is a block whose path has been resolved.
type target struct {
	block edit.Block
	path  string
}

type blockResult struct {
	results []edit.MatchResult
	outcome string
	err     error
}

// run accumulates block results from concurrent workers.
type run struct {
	mu        sync.Mutex
	summary   *Summary
	unchanged map[string]bool
	failed    map[string]bool
	done      int
}

// Process scans chunks for edit blocks and applies them. Blocks for the
// same path are applied in stream order; different paths run
// concurrently. Nothing is written until every block has been resolved.
func (a *App) Process(ctx context.Context, chunks iter.Seq[string]) (Summary, error) {
	blocks, summary, err := a.collect(ctx, chunks)
	if err != nil {
		return summary, err
	}

	targets := a.targets(blocks, &summary)
	if len(targets) == 0 {
		if summary.Message == "" && summary.OK() {
			summary.Message = "Nothing to do"
		}
		return summary, nil
	}

	ws := workspace.New(a.resolver)
	r := &run{summary: &summary, unchanged: map[string]bool{}, failed: map[string]bool{}}
	if err := a.apply(ctx, ws, targets, r); err != nil {
		return summary, err
	}
	if err := a.commit(ctx, ws, r); err != nil {
		return summary, err
	}
	return summary, nil
}

// collect scans the stream into blocks. In auto format a stream without
// any registered tag is read as markdown instead.
func (a *App) collect(ctx context.Context, chunks iter.Seq[string]) ([]edit.Block, Summary, error) {
	var summary Summary

	col := edit.NewCollector(a.cfg.Tags.File, a.cfg.Tags.Patch, a.logger)
	reg := col.Registry()
	if a.cfg.Format == config.FormatMarkdown {
		reg = scanner.Registry{}
	}

	var passthrough strings.Builder
	for frag, err := range scanner.Scan(ctx, chunks, reg) {
		if err != nil {
			var incomplete *scanner.IncompleteTagError
			if !errors.As(err, &incomplete) {
				return nil, summary, err
			}
			summary.Incomplete = incomplete.Error()
			a.logger.Warn("Stream ended inside a block", slog.String("tag", incomplete.Tag))
			break
		}
		passthrough.WriteString(frag)
		if a.cfg.Echo {
			io.WriteString(a.stdout, frag)
		}
	}

	blocks := col.Blocks()
	summary.Skipped = col.Skipped()

	markdown := a.cfg.Format == config.FormatMarkdown ||
		a.cfg.Format == config.FormatAuto && len(blocks) == 0 && summary.Skipped == 0 && summary.Incomplete == ""
	if markdown {
		md, err := edit.ExtractMarkdown(passthrough.String())
		if err != nil {
			return nil, summary, fmt.Errorf("failed to parse markdown: %w", err)
		}
		blocks = md
	}
	return blocks, summary, nil
}

// targets resolves block paths and applies the extension and file filters.
// Paths outside the root are reported as failures.
func (a *App) targets(blocks []edit.Block, summary *Summary) []target {
	files := make(map[string]bool, len(a.cfg.Files))
	for _, f := range a.cfg.Files {
		if p, err := a.resolver.Resolve(f); err == nil {
			files[p] = true
		}
	}

	var out []target
	for _, b := range blocks {
		if !edit.HasAllowedExtension(b.Path, a.cfg.Extensions) {
			a.logger.Debug("Skipping block by extension", slog.String("file", b.Path))
			continue
		}
		p, err := a.resolver.Resolve(b.Path)
		if err != nil {
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", b.Path, err))
			a.metrics.ObserveBlock(b.Kind, metrics.OutcomeFailed)
			continue
		}
		if len(files) > 0 && !files[p] {
			a.logger.Debug("Skipping block by file filter", slog.String("file", b.Path))
			continue
		}
		out = append(out, target{block: b, path: p})
	}
	return out
}

// apply resolves every target into staged content.
func (a *App) apply(ctx context.Context, ws *workspace.Workspace, targets []target, r *run) error {
	var order []string
	groups := make(map[string][]target)
	for _, t := range targets {
		if _, ok := groups[t.path]; !ok {
			order = append(order, t.path)
		}
		groups[t.path] = append(groups[t.path], t)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for _, path := range order {
		group := groups[path]
		g.Go(func() error {
			for _, t := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				res := a.applyBlock(ws, t)
				a.record(r, t, res, len(targets))
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *App) applyBlock(ws *workspace.Workspace, t target) blockResult {
	current, exists, err := ws.Read(t.path)
	if err != nil {
		return blockResult{outcome: metrics.OutcomeFailed, err: err}
	}

	var next string
	var res blockResult
	switch t.block.Kind {
	case edit.KindContent:
		next = t.block.Content
		if !exists && edit.HasLazyEdit(t.block.Path, next) {
			return blockResult{outcome: metrics.OutcomeFailed, err: ErrLazyEdit}
		}

	case edit.KindSearchReplace:
		if !exists {
			return blockResult{outcome: metrics.OutcomeFailed, err: ErrMissingFile}
		}
		next, res = a.resolvePairs(current, t.block.Pairs)
		if res.err != nil {
			return res
		}

	case edit.KindPatch:
		next, err = a.applyPatch(current, t.block.Content)
		if err != nil {
			return blockResult{outcome: metrics.OutcomeFailed, err: err}
		}
	}

	if exists && next == current {
		if res.outcome == "" {
			res.outcome = metrics.OutcomeUnchanged
		}
		return res
	}
	if err := ws.Stage(t.path, next); err != nil {
		return blockResult{results: res.results, outcome: metrics.OutcomeFailed, err: err}
	}
	if res.outcome == "" {
		res.outcome = metrics.OutcomeApplied
	}
	return res
}

// resolvePairs matches pairs in order and merges the resulting hunks. In
// strict mode any unmatched pair rejects the whole block.
func (a *App) resolvePairs(content string, pairs []edit.Pair) (string, blockResult) {
	results, _ := a.matcher.ResolveAll(content, pairs)
	res := blockResult{results: results}

	var hunks []edit.Hunk
	for _, r := range results {
		if r.Matched() {
			hunks = append(hunks, *r.Hunk)
		}
	}

	if len(hunks) < len(results) {
		if a.cfg.Strict {
			res.outcome, res.err = metrics.OutcomeFailed, ErrUnmatchedPairs
			return content, res
		}
		switch {
		case len(hunks) > 0:
			res.outcome = metrics.OutcomePartial
		case !allBenign(results):
			res.outcome = metrics.OutcomeFailed
		}
	}

	next, err := a.applier.ApplyHunks(content, hunks)
	if err != nil {
		res.outcome, res.err = metrics.OutcomeFailed, err
		return content, res
	}
	return next, res
}

// allBenign reports whether every unmatched pair was already in effect.
func allBenign(results []edit.MatchResult) bool {
	for _, r := range results {
		if !r.Matched() && r.Reason != edit.ReasonAlreadyApplied && r.Reason != edit.ReasonNoChange {
			return false
		}
	}
	return true
}

func (a *App) applyPatch(content, text string) (string, error) {
	doc, err := patch.Parse(text)
	if err != nil {
		return "", err
	}
	if a.cfg.Reverse {
		doc = doc.Reverse()
	}
	next, err := a.applier.Apply(content, doc)
	a.metrics.ObserveHunks(len(doc.Hunks), err == nil)
	return next, err
}

func (a *App) record(r *run, t target, res blockResult, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel := a.resolver.Rel(t.path)
	for _, mr := range res.results {
		a.metrics.ObservePair(mr)
		if !mr.Matched() {
			r.summary.Unmatched = append(r.summary.Unmatched, Unmatched{Path: rel, Search: mr.Pair.Search, Reason: mr.Reason})
		}
	}
	a.metrics.ObserveBlock(t.block.Kind, res.outcome)

	switch {
	case res.err != nil:
		r.failed[t.path] = true
		r.summary.Failed = append(r.summary.Failed, fmt.Sprintf("%s: %v", rel, res.err))
		a.logger.Warn("Failed to apply block",
			slog.String("file", rel),
			slog.String("kind", t.block.Kind.String()),
			slog.Any("error", res.err))
	case res.outcome == metrics.OutcomeUnchanged:
		r.unchanged[t.path] = true
	}

	r.done++
	a.reportProgress(r.done, total)
}

// commit writes staged changes, or renders them as diffs on a dry run,
// and records written changes in the history.
func (a *App) commit(ctx context.Context, ws *workspace.Workspace, r *run) error {
	s := r.summary
	changes := ws.Staged()

	changed := make(map[string]bool, len(changes))
	for _, c := range changes {
		changed[c.Path] = true
	}
	for p := range r.unchanged {
		if !changed[p] && !r.failed[p] {
			s.Unchanged = append(s.Unchanged, a.resolver.Rel(p))
		}
	}
	slices.Sort(s.Unchanged)

	if len(changes) == 0 {
		return nil
	}

	if a.cfg.DryRun {
		for _, c := range changes {
			rel := a.resolver.Rel(c.Path)
			doc := patch.Diff(c.Old, c.New, patch.DefaultContext)
			doc.OldName, doc.NewName = "a/"+rel, "b/"+rel
			if c.Created() {
				doc.OldName = "/dev/null"
			}
			s.Diffs = append(s.Diffs, FileDiff{Path: rel, Doc: doc})
			a.listChange(s, c)
		}
		s.Message = "Dry run, nothing written"
		return nil
	}

	w, closeWriter, err := a.openWriter(ctx)
	if err != nil {
		return err
	}
	defer closeWriter()

	var written []workspace.Change
	for _, c := range changes {
		if err := w.Write(ctx, c.Path, c.New); err != nil {
			s.Failed = append(s.Failed, fmt.Sprintf("%s: %v", a.resolver.Rel(c.Path), err))
			a.metrics.ObserveFile("failed")
			continue
		}
		written = append(written, c)
		a.listChange(s, c)
	}
	if err := flush(w); err != nil {
		return fmt.Errorf("failed to save buffers: %w", err)
	}

	store, err := history.New(a.stateDir)
	if err != nil {
		a.logger.Warn("History unavailable, run cannot be undone", slog.Any("error", err))
		return nil
	}
	if s.HistoryID, err = store.Record(written); err != nil {
		a.logger.Warn("Failed to record history", slog.Any("error", err))
	}
	return nil
}

func (a *App) listChange(s *Summary, c workspace.Change) {
	rel := a.resolver.Rel(c.Path)
	if c.Created() {
		s.Created = append(s.Created, rel)
		a.metrics.ObserveFile("created")
		return
	}
	s.Modified = append(s.Modified, rel)
	a.metrics.ObserveFile("modified")
}
