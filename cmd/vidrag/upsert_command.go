package main

import (
	"github.com/spf13/cobra"
)

func newUpsertCommand(ctx *commandContext) *cobra.Command {
	var (
		batch    int
		recreate bool
	)

	cmd := &cobra.Command{
		Use:   "upsert <records.jsonl>",
		Short: "Load a validated record file into the vector index",
		Long: "Validate the whole file against embedding.dims, then upsert in batches. " +
			"A failed batch is logged and the remaining batches are still sent. " +
			"--recreate drops the collection first so the index holds only this file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = cfg.Index.UpsertBatch
			}
			return upsertFile(cmd, ctx, cfg, args[0], batch, recreate, ctx.log(cmd))
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "Records per upsert call (default index.upsert_batch)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the collection before loading")
	return cmd
}
