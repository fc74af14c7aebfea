package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/ingest"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <video-dir> <transcript-dir>",
		Short: "Transcribe every video in a folder tree",
		Long:  "Walk the folder for .mp4 .mov .mkv and .avi files and write one pipe-format transcript per video.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)
			if err := os.MkdirAll(args[1], 0o755); err != nil {
				return fmt.Errorf("create %s: %w", args[1], err)
			}

			rep, err := ingest.TranscribeFolder(cmd.Context(), args[0], args[1], ctx.extractor(cfg), ctx.transcriber(cfg), log)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"videos", strconv.Itoa(rep.Files)},
				{"transcribed", strconv.Itoa(rep.Succeeded)},
				{"failed", strconv.Itoa(len(rep.Failed))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Transcribe", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			if rep.Files > 0 && rep.Succeeded == 0 {
				return fmt.Errorf("transcribe: all %d videos failed", rep.Files)
			}
			return nil
		},
	}
}
