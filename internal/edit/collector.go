package edit

import (
	"log/slog"
	"strings"

	"github.com/sokinpui/editstream/internal/scanner"
)

// Collector turns tag bodies into Blocks while a stream is scanned.
type Collector struct {
	fileTag  string
	patchTag string
	logger   *slog.Logger

	blocks  []Block
	skipped int
}

func NewCollector(fileTag, patchTag string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fileTag: fileTag, patchTag: patchTag, logger: logger}
}

// Registry returns the scanner tags feeding this collector.
func (c *Collector) Registry() scanner.Registry {
	reg := scanner.Registry{}
	if c.fileTag != "" {
		reg[c.fileTag] = scanner.Tag{
			AttributeNames: []string{"path"},
			OnEnd: func(content string, attrs map[string]string) bool {
				c.addFile(attrs["path"], content)
				return false
			},
		}
	}
	if c.patchTag != "" {
		reg[c.patchTag] = scanner.Tag{
			AttributeNames: []string{"path"},
			OnEnd: func(content string, attrs map[string]string) bool {
				c.addPatch(attrs["path"], content)
				return false
			},
		}
	}
	return reg
}

func (c *Collector) addFile(path, content string) {
	if path = strings.TrimSpace(path); path == "" {
		c.skip(c.fileTag)
		return
	}
	if HasPairs(content) {
		c.blocks = append(c.blocks, Block{
			Path:   path,
			Kind:   KindSearchReplace,
			Pairs:  ParsePairs(content),
			Source: "tag",
		})
		return
	}
	c.blocks = append(c.blocks, Block{
		Path:    path,
		Kind:    KindContent,
		Content: CleanContent(content),
		Source:  "tag",
	})
}

func (c *Collector) addPatch(path, content string) {
	if path = strings.TrimSpace(path); path == "" {
		path = ExtractPathFromDiff(content)
	}
	if path == "" {
		c.skip(c.patchTag)
		return
	}
	c.blocks = append(c.blocks, Block{
		Path:    path,
		Kind:    KindPatch,
		Content: CleanContent(content),
		Source:  "tag",
	})
}

func (c *Collector) skip(tag string) {
	c.skipped++
	c.logger.Warn("Skipping block without a path", slog.String("tag", tag))
}

// Blocks returns the blocks collected so far, in stream order.
func (c *Collector) Blocks() []Block {
	return c.blocks
}

// Skipped returns how many tag bodies were dropped for lacking a path.
func (c *Collector) Skipped() int {
	return c.skipped
}
