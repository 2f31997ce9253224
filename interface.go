package editstream

import (
	"context"
	"fmt"
	"iter"

	"github.com/sokinpui/editstream/internal/config"
	"github.com/sokinpui/editstream/internal/source"
)

// Apply runs the pipeline over content already held in memory.
func Apply(ctx context.Context, content string, cfg *config.Config, opts ...Option) (Summary, error) {
	size := source.DefaultChunkSize
	if cfg != nil {
		size = cfg.ChunkSize
	}
	return ApplyStream(ctx, source.FromString(content, size).Chunks(), cfg, opts...)
}

// ApplyStream runs the pipeline over a chunk stream, such as the token
// deltas of a model response.
func ApplyStream(ctx context.Context, chunks iter.Seq[string], cfg *config.Config, opts ...Option) (Summary, error) {
	app, err := NewApp(cfg, opts...)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to initialize editstream app: %w", err)
	}
	return app.Process(ctx, chunks)
}
