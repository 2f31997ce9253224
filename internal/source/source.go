// Package source produces the chunk streams fed to the scanner.
package source

import (
	"errors"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
)

const DefaultChunkSize = 4096

// Reader yields the contents of an io.Reader in chunks. Chunks never split
// a UTF-8 sequence. After iteration, Err reports any read error.
type Reader struct {
	r    io.Reader
	size int
	err  error
}

func FromReader(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Reader{r: r, size: size}
}

func FromString(s string, size int) *Reader {
	return FromReader(strings.NewReader(s), size)
}

func (r *Reader) Chunks() iter.Seq[string] {
	return func(yield func(string) bool) {
		buf := make([]byte, r.size+utf8.UTFMax)
		pending := 0
		for {
			n, err := r.r.Read(buf[pending : pending+r.size])
			n += pending
			pending = 0

			if n > 0 {
				cut := n
				if err == nil {
					cut = completeRunes(buf[:n])
				}
				if cut > 0 && !yield(string(buf[:cut])) {
					return
				}
				pending = copy(buf, buf[cut:n])
			}

			if errors.Is(err, io.EOF) {
				if pending > 0 {
					yield(string(buf[:pending]))
				}
				return
			}
			if err != nil {
				r.err = err
				return
			}
		}
	}
}

func (r *Reader) Err() error {
	return r.err
}

// completeRunes returns the length of the longest prefix of b that does
// not end inside a multi-byte sequence.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

// Clipboard returns the system clipboard text.
func Clipboard() (string, error) {
	c, err := clipboard.ReadAll()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(c), nil
}

// Provider picks stdin when it is piped and the clipboard otherwise.
type Provider struct {
	Stdin     *os.File
	ChunkSize int
	// Clipboard defaults to the package Clipboard function.
	Clipboard func() (string, error)
}

func NewProvider(chunkSize int) *Provider {
	return &Provider{Stdin: os.Stdin, ChunkSize: chunkSize, Clipboard: Clipboard}
}

func (p *Provider) Open() (*Reader, error) {
	if p.Stdin != nil {
		if stat, err := p.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
			return FromReader(p.Stdin, p.ChunkSize), nil
		}
	}

	read := p.Clipboard
	if read == nil {
		read = Clipboard
	}
	c, err := read()
	if err != nil {
		return nil, err
	}
	return FromString(c, p.ChunkSize), nil
}
