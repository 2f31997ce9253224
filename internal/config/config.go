// Package config loads and validates run settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = ".editstream.yaml"

const (
	FormatAuto     = "auto"
	FormatTags     = "tags"
	FormatMarkdown = "markdown"

	TargetDisk = "disk"
	TargetNvim = "nvim"
)

type Tags struct {
	File  string `yaml:"file" validate:"required,tagname"`
	Patch string `yaml:"patch" validate:"required,tagname,nefield=File"`
}

type Matcher struct {
	Compact bool `yaml:"compact"`
}

type Patch struct {
	Window int `yaml:"window" validate:"gte=0"`
	Fuzz   int `yaml:"fuzz" validate:"gte=0,lte=10"`
}

type Config struct {
	Tags        Tags     `yaml:"tags"`
	Format      string   `yaml:"format" validate:"oneof=auto tags markdown"`
	Matcher     Matcher  `yaml:"matcher"`
	Patch       Patch    `yaml:"patch"`
	Concurrency int      `yaml:"concurrency" validate:"gte=1,lte=64"`
	ChunkSize   int      `yaml:"chunk_size" validate:"gte=1"`
	Target      string   `yaml:"target" validate:"oneof=disk nvim"`
	Strict      bool     `yaml:"strict"`
	DryRun      bool     `yaml:"dry_run"`
	Echo        bool     `yaml:"echo"`
	Verbose     bool     `yaml:"verbose"`
	Extensions  []string `yaml:"extensions"`
	Files       []string `yaml:"files"`
	StateDir    string   `yaml:"state_dir"`
	MetricsFile string   `yaml:"metrics_file"`

	// Per-invocation modes, set from flags only.
	Undo          bool `yaml:"-"`
	Redo          bool `yaml:"-" validate:"excluded_with=Undo"`
	Reverse       bool `yaml:"-"`
	OutputDiffFix bool `yaml:"-"`
	NoAnimation   bool `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Tags:        Tags{File: "file", Patch: "patch"},
		Format:      FormatAuto,
		Matcher:     Matcher{Compact: true},
		Patch:       Patch{Window: 50, Fuzz: 2},
		Concurrency: 4,
		ChunkSize:   4096,
		Target:      TargetDisk,
		StateDir:    ".editstream",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path falls back to DefaultFile, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

var tagNamePattern = regexp.MustCompile(`^[A-Za-z][\w.-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		return tagNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate normalizes extensions and checks every field.
func (c *Config) Validate() error {
	c.Extensions = NormalizeExtensions(c.Extensions)
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NormalizeExtensions prefixes a dot where one is missing.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
