package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/WessleyAI/vidrag/pkg/fn"
)

// Failure is one item that did not make it through.
type Failure struct {
	Item string
	Err  error
}

// Summary counts the outcome of a batch run.
type Summary struct {
	Items     int
	Succeeded int
	Records   int
	Failures  []Failure
}

// Failed returns the number of failed items.
func (s Summary) Failed() int { return len(s.Failures) }

// Runner processes filenames one at a time through the pipeline.
type Runner struct {
	deps     Deps
	pipeline fn.Stage[string, Item]
	log      *slog.Logger
	// KeepFiles leaves downloaded videos and audio in the work directory.
	KeepFiles bool
}

// NewRunner builds a Runner over deps.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps, pipeline: NewPipeline(deps), log: deps.logger()}
}

// Process runs one filename and returns its item. The item directory is
// removed afterwards unless KeepFiles is set.
func (r *Runner) Process(ctx context.Context, filename string) (Item, error) {
	res := r.pipeline(ctx, filename)
	if !r.KeepFiles {
		r.cleanup(filename)
	}
	return res.Unwrap()
}

// Run processes every filename in order, writing the records of each
// finished item to sink. A failed item is logged and the batch continues;
// a sink error stops the run.
func (r *Runner) Run(ctx context.Context, filenames []string, sink RecordSink) (Summary, error) {
	var sum Summary
	for _, name := range filenames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Items++

		it, err := r.Process(ctx, name)
		if err != nil {
			r.log.Error("ingest: item failed", "item", name, "error", err)
			r.deps.Metrics.itemDone("failed", 0)
			sum.Failures = append(sum.Failures, Failure{Item: name, Err: err})
			continue
		}
		if sink != nil {
			if err := sink.WriteAll(it.Records); err != nil {
				return sum, fmt.Errorf("ingest: write records for %s: %w", name, err)
			}
		}
		sum.Succeeded++
		sum.Records += len(it.Records)
		r.deps.Metrics.itemDone("ok", len(it.Records))
		r.log.Info("ingest: item done", "item", name, "chunks", len(it.Chunks), "hints", len(it.Hints))
	}
	return sum, nil
}

func (r *Runner) cleanup(filename string) {
	dir := ItemDir(r.deps.WorkDir, filename)
	if err := os.RemoveAll(dir); err != nil {
		r.log.Warn("ingest: cleanup", "path", dir, "error", err)
	}
}
