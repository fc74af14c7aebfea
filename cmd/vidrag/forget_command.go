package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/pkg/ledger"
)

func newForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <filename...>",
		Short: "Remove videos from the index, the section graph and the worker ledger",
		Long:  "Delete every indexed chunk of each video and clear its ledger entry so the worker ingests it again.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)
			runCtx := cmd.Context()

			vs, err := ctx.vectorStore(runCtx, cfg, false, log)
			if err != nil {
				return err
			}
			defer vs.Close()

			led, err := ledger.Open(cfg.Paths.LedgerPath)
			if err != nil {
				return err
			}
			defer led.Close()

			graph, closeGraph := ctx.graphStore(runCtx, cfg, log)
			defer closeGraph()

			var errs []error
			for _, name := range args {
				if err := vs.DeleteByFilename(runCtx, name); err != nil {
					errs = append(errs, err)
					continue
				}
				if err := led.Forget(name); err != nil {
					errs = append(errs, fmt.Errorf("ledger: forget %s: %w", name, err))
				}
				if graph != nil {
					if err := graph.DeleteVideo(runCtx, name); err != nil {
						log.Warn("section graph delete", "item", name, "error", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", name)
			}
			return errors.Join(errs...)
		},
	}
}
