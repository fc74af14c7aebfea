package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/ingest"
	"github.com/WessleyAI/vidrag/engine/record"
)

func newRestrictCommand(ctx *commandContext) *cobra.Command {
	var (
		output    string
		videoRoot string
	)

	cmd := &cobra.Command{
		Use:   "restrict <chunk-embeddings.json>",
		Short: "Attach video metadata restricts to chunk embeddings",
		Long: "Resolve each chunk's video against the library (folder layout under --video-root, " +
			"or the SQLite catalog) and write one index record per chunk as JSONL.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)

			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			entries, err := record.ReadChunkEmbeddings(in)
			in.Close()
			if err != nil {
				return err
			}

			lookup, closer, err := ctx.metadataSource(cfg, videoRoot)
			if err != nil {
				return err
			}
			defer closer.Close()

			recs, rep := ingest.Restrict(cmd.Context(), entries, lookup, log)

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			w := record.NewWriter(out)
			if err := w.WriteAll(recs); err != nil {
				out.Close()
				return err
			}
			if err := w.Flush(); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}

			rows := [][]string{
				{"entries", strconv.Itoa(rep.Entries)},
				{"records", strconv.Itoa(rep.Records)},
				{"missing videos", strconv.Itoa(rep.Missing)},
				{"skipped", strconv.Itoa(rep.Skipped)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Restrict", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", rep.Records, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "restricts.jsonl", "Output JSONL path")
	cmd.Flags().StringVar(&videoRoot, "video-root", "", "Video library root (default paths.video_root)")
	return cmd
}
