package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/ingest"
	"github.com/WessleyAI/vidrag/engine/record"
)

func newChunkCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "chunk <transcript-dir>",
		Short: "Segment and embed a folder of pipe-format transcripts",
		Long: "Read every .txt transcript (HH:MM:SS | HH:MM:SS | text per line) in the folder, " +
			"detect section boundaries, segment, merge short chunks and embed them. " +
			"The result is a JSON array of chunk embeddings for the restrict command.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)
			deps := ingest.Deps{
				Boundaries: ctx.boundaries(cfg, log),
				Embedder:   ctx.embedder(cfg),
				Logger:     log,
				Segment:    ctx.segmentOptions(cfg),
				Dims:       cfg.Embedding.Dims,
			}

			entries, rep, err := ingest.ChunkFolder(cmd.Context(), args[0], deps)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := record.WriteChunkEmbeddings(f, entries); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}

			rows := [][]string{
				{"transcripts", strconv.Itoa(rep.Files)},
				{"chunked", strconv.Itoa(rep.Succeeded)},
				{"failed", strconv.Itoa(len(rep.Failed))},
				{"chunks", strconv.Itoa(len(entries))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Chunk", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d chunk embeddings to %s\n", len(entries), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "chunk_embeddings.json", "Output JSON path")
	return cmd
}
