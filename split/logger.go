package split

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with consistent field names for split runs.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable
	}))
}

// WithInput adds the master file path to every record.
func (l *Logger) WithInput(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("input", path),
	}
}

// LogBlocks logs the scanned block table.
func (l *Logger) LogBlocks(ctx context.Context, table *BlockTable) {
	l.InfoContext(ctx, "blocks scanned",
		"blocks", len(table.Blocks),
		"frames", table.TotalFrames(),
		"frame_shape", table.FrameShape,
		"element_size", table.ElementSize,
	)
	for i, b := range table.Blocks {
		l.DebugContext(ctx, "block",
			"block", i,
			"name", b.Name,
			"file", b.File,
			"frames", b.Frames,
		)
	}
}

// LogPlan logs the partition plan.
func (l *Logger) LogPlan(ctx context.Context, partitions []Partition) {
	if len(partitions) == 0 {
		return
	}
	l.InfoContext(ctx, "plan computed",
		"partitions", len(partitions),
		"frames_per_partition", partitions[0].Len(),
	)
	for _, p := range partitions {
		l.DebugContext(ctx, "partition plan",
			"partition", p.Index+1,
			"start", p.Start,
			"end", p.End,
			"segments", len(p.Segments),
		)
	}
}

// LogPartitionStart logs the start of a partition.
func (l *Logger) LogPartitionStart(ctx context.Context, p Partition, output string) {
	l.DebugContext(ctx, "partition started",
		"partition", p.Index+1,
		"output", output,
	)
}

// LogPartitionDone logs a completed partition.
func (l *Logger) LogPartitionDone(ctx context.Context, p Partition, output string) {
	l.InfoContext(ctx, "partition written",
		"partition", p.Index+1,
		"output", output,
		"frames", p.Len(),
		"segments", len(p.Segments),
	)
}

// LogPartitionError logs a failed partition.
func (l *Logger) LogPartitionError(ctx context.Context, p Partition, output string, err error) {
	l.ErrorContext(ctx, "partition failed",
		"partition", p.Index+1,
		"output", output,
		"error", err,
	)
}
