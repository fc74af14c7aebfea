package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/record"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var dims int

	cmd := &cobra.Command{
		Use:   "validate <records.jsonl>",
		Short: "Check that every record's embedding has the configured dimension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			if dims <= 0 {
				dims = cfg.Embedding.Dims
			}
			n, err := record.ValidateFile(args[0], dims)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records valid (dims %d)\n", n, dims)
			return nil
		},
	}

	cmd.Flags().IntVar(&dims, "dims", 0, "Expected embedding dimension (default embedding.dims)")
	return cmd
}
