package state

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/internal/fs"
	"github.com/sokinpui/snippy/model"
)

const (
	stateFileName = "journal"
	TrashDir      = "trash"
	// MaxHistory is the number of batches kept; older backups are removed.
	MaxHistory = 20
	noBackup   = "-" // placeholder for an empty field
)

// Operation is one file written by a batch.
type Operation struct {
	Path        string // slash path relative to the base directory
	Action      model.FileAction
	ContentHash string // SHA256 of the file content after the write
	Backup      string // path of the previous content relative to the state dir, or ""
}

// HistoryEntry is one applied batch.
type HistoryEntry struct {
	ID         string
	Timestamp  int64
	Operations []Operation
}

// State is the whole journal file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

type pendingOp struct {
	action model.FileAction
	backup string
}

// Journal records applied batches below <base>/.snippy so they can be
// undone. It implements fs.Hook.
type Journal struct {
	base      string
	stateDir  string
	statePath string
	state     *State

	batchID string
	pending map[string]pendingOp
}

var _ fs.Hook = (*Journal)(nil)

// Open creates the state directory if needed and loads the journal.
func Open(base string) (*Journal, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, model.IOError(err, "resolving "+base)
	}
	stateDir := filepath.Join(abs, fs.StateDir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, model.IOError(err, "creating state directory")
	}
	j := &Journal{
		base:      abs,
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		pending:   make(map[string]pendingOp),
	}
	if err := j.load(); err != nil {
		slog.Warn("Discarding unreadable journal", "path", j.statePath, "err", err)
		j.state = &State{CurrentIndex: -1}
	}
	return j, nil
}

// StateDir returns the absolute state directory.
func (j *Journal) StateDir() string {
	return j.stateDir
}

// History returns the recorded batches, oldest first, up to the current one.
func (j *Journal) History() []HistoryEntry {
	return append([]HistoryEntry(nil), j.state.History[:j.state.CurrentIndex+1]...)
}

// BeforeWrite backs up abs when it is about to be replaced.
func (j *Journal) BeforeWrite(abs string, action model.FileAction) error {
	if j.batchID == "" {
		j.batchID = uuid.NewString()
	}
	rel, err := j.rel(abs)
	if err != nil {
		return err
	}

	op := pendingOp{action: action}
	if action == model.ActionModify {
		backup := filepath.ToSlash(filepath.Join(TrashDir, j.batchID, rel))
		if err := copyFile(abs, filepath.Join(j.stateDir, filepath.FromSlash(backup))); err != nil {
			return err
		}
		op.backup = backup
	}
	j.pending[abs] = op
	return nil
}

// AfterBatch records the written results of a batch as one history entry.
func (j *Journal) AfterBatch(results []model.ApplyResult) {
	defer func() {
		j.batchID = ""
		j.pending = make(map[string]pendingOp)
	}()

	var ops []Operation
	for _, r := range results {
		p, ok := j.pending[r.AbsPath]
		if !ok {
			continue
		}
		if !r.Written() {
			if p.backup != "" {
				_ = os.Remove(filepath.Join(j.stateDir, filepath.FromSlash(p.backup)))
			}
			continue
		}
		rel, err := j.rel(r.AbsPath)
		if err != nil {
			continue
		}
		hash, err := fs.FileSHA256(r.AbsPath)
		if err != nil {
			slog.Warn("Could not hash written file", "path", rel, "err", err)
		}
		ops = append(ops, Operation{Path: rel, Action: p.action, ContentHash: hash, Backup: p.backup})
		delete(j.pending, r.AbsPath)
	}
	if len(ops) == 0 {
		if j.batchID != "" {
			_ = os.RemoveAll(filepath.Join(j.stateDir, TrashDir, j.batchID))
		}
		return
	}

	if err := j.Write(j.batchID, ops); err != nil {
		slog.Error("Failed to save journal", "path", j.statePath, "err", err)
	}
}

// Write adds a new set of operations to the history, discarding any undone
// entries after the current one.
func (j *Journal) Write(id string, operations []Operation) error {
	if id == "" {
		id = uuid.NewString()
	}
	for _, dropped := range j.state.History[j.state.CurrentIndex+1:] {
		j.removeTrash(dropped.ID)
	}
	j.state.History = j.state.History[:j.state.CurrentIndex+1]

	sort.Slice(operations, func(a, b int) bool {
		return operations[a].Path < operations[b].Path
	})
	j.state.History = append(j.state.History, HistoryEntry{
		ID:         id,
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	})
	if over := len(j.state.History) - MaxHistory; over > 0 {
		for _, old := range j.state.History[:over] {
			j.removeTrash(old.ID)
		}
		j.state.History = append([]HistoryEntry(nil), j.state.History[over:]...)
	}
	j.state.CurrentIndex = len(j.state.History) - 1
	return j.save()
}

// Undo reverts the most recent batch: modified files get their previous
// content back and created files are removed. When a file was changed after
// the batch wrote it, nothing is reverted and the error wraps ErrConflict,
// unless force is set.
func (j *Journal) Undo(force bool) ([]model.ApplyResult, error) {
	if j.state.CurrentIndex < 0 {
		return nil, errors.WithStack(model.ErrNothingToUndo)
	}
	entry := j.state.History[j.state.CurrentIndex]

	if !force {
		var conflicts []string
		for _, op := range entry.Operations {
			hash, err := fs.FileSHA256(j.abs(op.Path))
			if err != nil || hash != op.ContentHash {
				conflicts = append(conflicts, op.Path)
			}
		}
		if len(conflicts) > 0 {
			return nil, errors.Errorf("%w: %s", model.ErrConflict, strings.Join(conflicts, ", "))
		}
	}

	results := make([]model.ApplyResult, 0, len(entry.Operations))
	for _, op := range entry.Operations {
		results = append(results, j.revert(op))
	}

	j.state.CurrentIndex--
	if err := j.save(); err != nil {
		return results, err
	}
	return results, nil
}

func (j *Journal) revert(op Operation) model.ApplyResult {
	abs := j.abs(op.Path)
	res := model.ApplyResult{Path: op.Path, AbsPath: abs, Action: op.Action, Status: model.StatusFailed}

	switch op.Action {
	case model.ActionCreate:
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			res.Reason = model.IOError(err, "removing "+op.Path)
			return res
		}
	default:
		backup := filepath.Join(j.stateDir, filepath.FromSlash(op.Backup))
		data, err := os.ReadFile(backup)
		if err != nil {
			res.Reason = model.IOError(err, "reading backup of "+op.Path)
			return res
		}
		mode := os.FileMode(0o644)
		if info, err := os.Stat(backup); err == nil {
			mode = info.Mode().Perm()
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			res.Reason = model.IOError(err, "creating parent directories")
			return res
		}
		if err := fs.WriteFileAtomic(abs, data, mode); err != nil {
			res.Reason = err
			return res
		}
	}

	res.Status = model.StatusWritten
	return res
}

func (j *Journal) rel(abs string) (string, error) {
	rel, err := filepath.Rel(j.base, abs)
	if err != nil {
		return "", model.IOError(err, "relativizing "+abs)
	}
	return filepath.ToSlash(rel), nil
}

func (j *Journal) abs(rel string) string {
	return filepath.Join(j.base, filepath.FromSlash(rel))
}

func (j *Journal) removeTrash(id string) {
	if id == "" {
		return
	}
	_ = os.RemoveAll(filepath.Join(j.stateDir, TrashDir, id))
}

// The journal file is a sequence of blocks separated by a blank line. The
// first block is the current index; every other block is one entry: a
// "<timestamp> <id>" line followed by four lines per operation (action,
// path, hash, backup).
func (j *Journal) load() error {
	data, err := os.ReadFile(j.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			j.state = &State{CurrentIndex: -1}
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		j.state = &State{CurrentIndex: -1}
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return errors.Errorf("invalid journal: could not parse current index: %w", err)
	}

	st := &State{CurrentIndex: index}
	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		tsField, id, _ := strings.Cut(lines[0], " ")
		ts, err := strconv.ParseInt(tsField, 10, 64)
		if err != nil {
			return errors.Errorf("invalid journal: could not parse timestamp from '%s': %w", lines[0], err)
		}
		entry := HistoryEntry{ID: id, Timestamp: ts}

		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return errors.New("invalid journal: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 4 {
			op := Operation{
				Action:      model.FileAction(opLines[i]),
				Path:        opLines[i+1],
				ContentHash: opLines[i+2],
			}
			if op.ContentHash == noBackup {
				op.ContentHash = ""
			}
			if b := opLines[i+3]; b != noBackup {
				op.Backup = b
			}
			entry.Operations = append(entry.Operations, op)
		}
		st.History = append(st.History, entry)
	}
	if st.CurrentIndex >= len(st.History) || st.CurrentIndex < -1 {
		return errors.Errorf("invalid journal: index %d out of range", st.CurrentIndex)
	}
	j.state = st
	return nil
}

func (j *Journal) save() error {
	blocks := []string{strconv.Itoa(j.state.CurrentIndex)}

	for _, entry := range j.state.History {
		var b strings.Builder
		fmt.Fprintf(&b, "%d %s", entry.Timestamp, entry.ID)
		for _, op := range entry.Operations {
			backup := op.Backup
			if backup == "" {
				backup = noBackup
			}
			hash := op.ContentHash
			if hash == "" {
				hash = noBackup
			}
			fmt.Fprintf(&b, "\n%s\n%s\n%s\n%s", op.Action, op.Path, hash, backup)
		}
		blocks = append(blocks, b.String())
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	return fs.WriteFileAtomic(j.statePath, []byte(content), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return model.IOError(err, "opening "+src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return model.IOError(err, "reading "+src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return model.IOError(err, "creating backup directory")
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return model.IOError(err, "creating backup")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return model.IOError(err, "writing backup")
	}
	if err := out.Close(); err != nil {
		return model.IOError(err, "closing backup")
	}
	return nil
}
