// Package nvim writes edited files through Neovim buffers so open editors
// see the change and keep it in their undo history.
package nvim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/neovim/go-client/nvim"
)

const undoDir = "~/.local/state/nvim/undo/"

// Writer implements workspace.Writer on top of a Neovim RPC connection.
// It attaches to $NVIM_LISTEN_ADDRESS when set and starts a headless
// instance otherwise.
type Writer struct {
	mu            sync.Mutex
	v             *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

func New(ctx context.Context) (*Writer, error) {
	if addr := os.Getenv("NVIM_LISTEN_ADDRESS"); addr != "" {
		v, err := nvim.Dial(addr, nvim.DialContext(ctx))
		if err == nil {
			return &Writer{v: v}, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "editstream-nvim-")
	if err != nil {
		return nil, err
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.CommandContext(ctx, "nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start nvim: %w", err)
	}

	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath, nvim.DialContext(ctx))
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to nvim: %w", err)
	}

	w := &Writer{v: v, isSelfStarted: true, cmd: cmd, socketPath: socketPath}
	if err := w.configureTempInstance(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) configureTempInstance() error {
	home, _ := os.UserHomeDir()
	expandedUndoDir := strings.Replace(undoDir, "~", home, 1)
	if err := os.MkdirAll(expandedUndoDir, 0o755); err != nil {
		return err
	}

	b := w.v.NewBatch()
	b.Command("set undofile")
	b.Command(fmt.Sprintf("set undodir=%s", expandedUndoDir))
	b.Command("set noswapfile")
	return b.Execute()
}

// Write replaces the whole buffer for path. The file is saved on Flush.
func (w *Writer) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}

	lines, eol, dos := bufferLines(content)

	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.v.NewBatch()
	b.Command(fmt.Sprintf("edit! %s", escapePath(absPath)))
	b.SetBufferLines(0, 0, -1, true, lines)
	b.Command(setEOL(eol))
	if dos {
		b.Command("setlocal fileformat=dos")
	}
	if err := b.Execute(); err != nil {
		return fmt.Errorf("failed to update buffer %s: %w", path, err)
	}
	return nil
}

// Flush writes every modified buffer to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.v.Command("wa!")
}

func (w *Writer) Close() {
	if w.v != nil {
		w.v.Close()
	}
	if w.isSelfStarted && w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
		_ = w.cmd.Wait()
		os.RemoveAll(filepath.Dir(w.socketPath))
	}
}

// bufferLines splits content into buffer lines. Neovim stores the final
// newline and CRLF endings as options rather than in the lines.
func bufferLines(content string) (lines [][]byte, eol, dos bool) {
	dos = strings.Contains(content, "\r\n")
	eol = strings.HasSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\n")

	parts := strings.Split(content, "\n")
	lines = make([][]byte, len(parts))
	for i, p := range parts {
		if dos {
			p = strings.TrimSuffix(p, "\r")
		}
		lines[i] = []byte(p)
	}
	return lines, eol, dos
}

func setEOL(eol bool) string {
	if eol {
		return "setlocal eol fixeol"
	}
	return "setlocal noeol nofixeol"
}

func escapePath(path string) string {
	return strings.NewReplacer(" ", `\ `, "%", `\%`, "#", `\#`).Replace(path)
}
