package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tags:
  file: edit
format: tags
patch:
  fuzz: 1
strict: true
extensions: [go, .py]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "edit", cfg.Tags.File)
	assert.Equal(t, "patch", cfg.Tags.Patch)
	assert.Equal(t, FormatTags, cfg.Format)
	assert.Equal(t, 1, cfg.Patch.Fuzz)
	assert.Equal(t, 50, cfg.Patch.Window)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Matcher.Compact)
	assert.Equal(t, []string{".go", ".py"}, cfg.Extensions)
}

func TestLoadMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load("nope.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fuzz: 3\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"bad target", func(c *Config) { c.Target = "ftp" }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative fuzz", func(c *Config) { c.Patch.Fuzz = -1 }},
		{"same tags", func(c *Config) { c.Tags.Patch = c.Tags.File }},
		{"tag with bracket", func(c *Config) { c.Tags.File = "fi<le" }},
		{"undo and redo", func(c *Config) { c.Undo, c.Redo = true, true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
