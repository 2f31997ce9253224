// Package history persists applied runs so they can be undone and redone.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokinpui/editstream/internal/workspace"
)

const (
	stateFileName  = "states"
	entrySeparator = "\n===\n"
	opSeparator    = "\n---\n"
	none           = "-"

	ActionCreate = "create"
	ActionModify = "modify"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

type Operation struct {
	Timestamp      int64
	Action         string
	Path           string
	OldContentHash string
	ContentHash    string
}

type Entry struct {
	ID         string
	Operations []Operation
}

type state struct {
	History      []Entry
	CurrentIndex int
}

// Store keeps the run history in a plain text file next to a blob store
// holding every before and after image.
type Store struct {
	dir       string
	statePath string
	state     state
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{dir: dir, statePath: filepath.Join(dir, stateFileName)}
	s.state = state{CurrentIndex: -1}
	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Entries returns the recorded history and the index of the entry that
// would be undone next.
func (s *Store) Entries() ([]Entry, int) {
	return s.state.History, s.state.CurrentIndex
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return err
	}

	blocks := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), entrySeparator)
	idx, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("bad history index: %w", err)
	}
	s.state = state{CurrentIndex: idx}

	val := func(v string) string {
		v = strings.TrimSpace(v)
		if v == none {
			return ""
		}
		return v
	}

	for _, b := range blocks[1:] {
		id, body, _ := strings.Cut(strings.TrimSpace(b), "\n")
		entry := Entry{ID: strings.TrimSpace(id)}
		for _, opBlock := range strings.Split(body, opSeparator) {
			lines := strings.Split(strings.TrimSpace(opBlock), "\n")
			if len(lines) < 5 {
				continue
			}
			ts, _ := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
			entry.Operations = append(entry.Operations, Operation{
				Timestamp:      ts,
				Action:         val(lines[1]),
				Path:           val(lines[2]),
				OldContentHash: val(lines[3]),
				ContentHash:    val(lines[4]),
			})
		}
		s.state.History = append(s.state.History, entry)
	}
	if s.state.CurrentIndex >= len(s.state.History) {
		s.state.CurrentIndex = len(s.state.History) - 1
	}
	return nil
}

func (s *Store) save() error {
	placeholder := func(v string) string {
		if v == "" {
			return none
		}
		return v
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d", s.state.CurrentIndex)
	for _, e := range s.state.History {
		b.WriteString(entrySeparator)
		b.WriteString(e.ID)
		b.WriteByte('\n')
		for i, op := range e.Operations {
			fmt.Fprintf(&b, "%d\n%s\n%s\n%s\n%s", op.Timestamp, placeholder(op.Action), placeholder(op.Path), placeholder(op.OldContentHash), placeholder(op.ContentHash))
			if i < len(e.Operations)-1 {
				b.WriteString(opSeparator)
			}
		}
	}
	return os.WriteFile(s.statePath, []byte(b.String()), 0o644)
}

// sync drops entries whose recorded results no longer match the files on
// disk, so undo never runs against content edited since. before holds the
// hashes of files just rewritten, as they were prior to the rewrite.
func (s *Store) sync(before map[string]string) {
	if s.state.CurrentIndex < 0 {
		return
	}
	for i := s.state.CurrentIndex; i >= 0; i-- {
		if s.matchState(i, before) {
			if i < s.state.CurrentIndex {
				s.state.History = s.state.History[:i+1]
				s.state.CurrentIndex = i
			}
			return
		}
	}
	s.state.History = nil
	s.state.CurrentIndex = -1
}

func (s *Store) matchState(idx int, before map[string]string) bool {
	for _, op := range s.state.History[idx].Operations {
		h, ok := before[op.Path]
		if !ok {
			var err error
			if h, err = workspace.HashFile(op.Path); err != nil {
				return false
			}
		}
		if h != op.ContentHash {
			return false
		}
	}
	return true
}

// Record stores a run's changes, already written, as a new history entry,
// discarding any entries that could have been redone. It returns the
// entry ID.
func (s *Store) Record(changes []workspace.Change) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}

	before := make(map[string]string, len(changes))
	for _, c := range changes {
		if c.Existed {
			before[c.Path] = workspace.Hash([]byte(c.Old))
		} else {
			before[c.Path] = ""
		}
	}
	s.sync(before)
	s.state.History = s.state.History[:s.state.CurrentIndex+1]

	now := time.Now().UTC().Unix()
	ops := make([]Operation, 0, len(changes))
	for _, c := range changes {
		op := Operation{Timestamp: now, Action: ActionModify, Path: c.Path}
		if c.Created() {
			op.Action = ActionCreate
		} else {
			op.OldContentHash = workspace.Hash([]byte(c.Old))
			if err := workspace.WriteBlob(s.dir, op.OldContentHash, []byte(c.Old)); err != nil {
				return "", err
			}
		}
		op.ContentHash = workspace.Hash([]byte(c.New))
		if err := workspace.WriteBlob(s.dir, op.ContentHash, []byte(c.New)); err != nil {
			return "", err
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })

	id := uuid.NewString()
	s.state.History = append(s.state.History, Entry{ID: id, Operations: ops})
	s.state.CurrentIndex++
	return id, s.save()
}

// Result lists the paths an undo or redo touched.
type Result struct {
	ID       string
	Restored []string
	Removed  []string
	Failed   []string
}

// Undo reverts the latest entry. A file is only reverted when its content
// still matches what the entry wrote.
func (s *Store) Undo(ctx context.Context, w workspace.Writer) (Result, error) {
	if s.state.CurrentIndex < 0 {
		return Result{}, ErrNothingToUndo
	}
	entry := s.state.History[s.state.CurrentIndex]
	s.state.CurrentIndex--

	res := Result{ID: entry.ID}
	for _, op := range entry.Operations {
		current, err := workspace.HashFile(op.Path)
		if err != nil || current != op.ContentHash {
			res.Failed = append(res.Failed, op.Path)
			continue
		}

		if op.Action == ActionCreate {
			if err := os.Remove(op.Path); err != nil {
				res.Failed = append(res.Failed, op.Path)
				continue
			}
			res.Removed = append(res.Removed, op.Path)
			continue
		}

		if err := s.restore(ctx, w, op.Path, op.OldContentHash); err != nil {
			res.Failed = append(res.Failed, op.Path)
			continue
		}
		res.Restored = append(res.Restored, op.Path)
	}
	return res, s.save()
}

// Redo reapplies the entry after the current one. A file is only rewritten
// when its content still matches what the entry started from.
func (s *Store) Redo(ctx context.Context, w workspace.Writer) (Result, error) {
	if s.state.CurrentIndex+1 >= len(s.state.History) {
		return Result{}, ErrNothingToRedo
	}
	s.state.CurrentIndex++
	entry := s.state.History[s.state.CurrentIndex]

	res := Result{ID: entry.ID}
	for _, op := range entry.Operations {
		current, err := workspace.HashFile(op.Path)
		if err != nil || current != op.OldContentHash {
			res.Failed = append(res.Failed, op.Path)
			continue
		}
		if err := s.restore(ctx, w, op.Path, op.ContentHash); err != nil {
			res.Failed = append(res.Failed, op.Path)
			continue
		}
		res.Restored = append(res.Restored, op.Path)
	}
	return res, s.save()
}

func (s *Store) restore(ctx context.Context, w workspace.Writer, path, hash string) error {
	content, err := workspace.ReadBlob(s.dir, hash)
	if err != nil {
		return err
	}
	return w.Write(ctx, path, string(content))
}
