package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/ingest"
	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/pkg/config"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		output    string
		videoRoot string
		upsert    bool
		upload    string
		keepFiles bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [filename...]",
		Short: "Transcribe, segment and embed videos into a JSONL record file",
		Long: "Ingest each named video (or the comma separated VIDEO_FILENAMES) through metadata lookup, " +
			"download, transcription, boundary detection, segmentation and embedding. Records are written " +
			"to a temporary file, validated, and only then moved onto the output path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)
			names := args
			if len(names) == 0 {
				names = splitList(os.Getenv("VIDEO_FILENAMES"))
			}
			if len(names) == 0 {
				return fmt.Errorf("no videos given: pass filenames or set VIDEO_FILENAMES")
			}
			if output == "" {
				output = cfg.Paths.Output
			}

			deps, cleanup, err := ctx.pipelineDeps(cmd.Context(), cfg, log, videoRoot)
			if err != nil {
				return err
			}
			defer cleanup()

			runner := ingest.NewRunner(deps)
			runner.KeepFiles = keepFiles
			sum, count, err := writeRecords(output, cfg.Embedding.Dims, func(w *record.Writer) (ingest.Summary, error) {
				return runner.Run(cmd.Context(), names, w)
			})
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(sum))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", count, output)

			if upsert && count > 0 {
				if err := upsertFile(cmd, ctx, cfg, output, cfg.Index.UpsertBatch, false, log); err != nil {
					return err
				}
			}
			if upload != "" {
				store := ctx.objectStore(cfg)
				err := store.Upload(cmd.Context(), output, upload)
				store.Close()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", output, upload)
			}
			if sum.Failed() > 0 && sum.Succeeded == 0 {
				return fmt.Errorf("ingest: all %d videos failed", sum.Failed())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSONL path (default paths.output)")
	cmd.Flags().StringVar(&videoRoot, "video-root", "", "Resolve metadata from this video library layout instead of the catalog")
	cmd.Flags().BoolVar(&upsert, "upsert", false, "Upsert the validated records into the vector index")
	cmd.Flags().StringVar(&upload, "upload", "", "Upload the validated file to this gs:// URL")
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Keep downloaded videos in the work directory")
	return cmd
}

// writeRecords locks output, lets fill write into a temporary sibling file,
// validates it and renames it into place. Nothing is published when fill or
// validation fails.
func writeRecords(output string, dims int, fill func(*record.Writer) (ingest.Summary, error)) (ingest.Summary, int, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return ingest.Summary{}, 0, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(output + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return ingest.Summary{}, 0, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ingest.Summary{}, 0, fmt.Errorf("output %s is locked by another run", output)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return ingest.Summary{}, 0, fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := record.NewWriter(tmp)
	sum, fillErr := fill(w)
	if err := w.Flush(); err != nil && fillErr == nil {
		fillErr = err
	}
	if err := tmp.Close(); err != nil && fillErr == nil {
		fillErr = err
	}
	if fillErr != nil {
		return sum, 0, fillErr
	}

	count, err := record.ValidateFile(tmp.Name(), dims)
	if err != nil {
		return sum, 0, fmt.Errorf("validate output: %w", err)
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return sum, 0, fmt.Errorf("publish output: %w", err)
	}
	return sum, count, nil
}

func renderSummary(sum ingest.Summary) string {
	rows := [][]string{
		{"videos", strconv.Itoa(sum.Items)},
		{"succeeded", strconv.Itoa(sum.Succeeded)},
		{"failed", strconv.Itoa(sum.Failed())},
		{"records", strconv.Itoa(sum.Records)},
	}
	out := renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
	if len(sum.Failures) == 0 {
		return out
	}
	failed := make([][]string, len(sum.Failures))
	for i, f := range sum.Failures {
		failed[i] = []string{f.Item, f.Err.Error()}
	}
	return out + "\n" + renderTable([]string{"Video", "Error"}, failed, nil)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// upsertFile loads a record file into the index. With recreate the
// collection is dropped before it is ensured again.
func upsertFile(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, path string, batch int, recreate bool, log *slog.Logger) error {
	// The whole file is validated before the first index write.
	if _, err := record.ValidateFile(path, cfg.Embedding.Dims); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	recs, skipped, err := record.ReadAll(f, log)
	f.Close()
	if err != nil {
		return err
	}

	vs, err := ctx.vectorStore(cmd.Context(), cfg, !recreate, log)
	if err != nil {
		return err
	}
	defer vs.Close()
	if recreate {
		if err := vs.DeleteCollection(cmd.Context()); err != nil {
			return err
		}
		log.Info("upsert: dropped collection", "collection", cfg.Index.Collection)
		if err := vs.EnsureCollection(cmd.Context(), cfg.Embedding.Dims); err != nil {
			return err
		}
	}

	rep := vs.UpsertBatched(cmd.Context(), recs, batch)
	rows := [][]string{
		{"records", strconv.Itoa(len(recs))},
		{"skipped lines", strconv.Itoa(skipped)},
		{"batches", strconv.Itoa(rep.Batches)},
		{"failed batches", strconv.Itoa(rep.Failed)},
		{"upserted", strconv.Itoa(rep.Upserted)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Upsert", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	if rep.Failed > 0 {
		return fmt.Errorf("upsert: %d of %d batches failed", rep.Failed, rep.Batches)
	}
	return nil
}
