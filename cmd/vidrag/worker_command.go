package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/ingest"
	"github.com/WessleyAI/vidrag/pkg/ledger"
	"github.com/WessleyAI/vidrag/pkg/metrics"
	"github.com/WessleyAI/vidrag/pkg/mid"
	"github.com/WessleyAI/vidrag/pkg/natsutil"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var videoRoot string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume ingest jobs from NATS and upsert them into the index",
		Long: "Subscribe to the ingest subject and run each {\"filename\"} job through the pipeline, " +
			"validate it, upsert it and record it in the ledger. A failed job goes to the dead letter " +
			"subject and is not retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)
			runCtx := cmd.Context()

			deps, cleanup, err := ctx.pipelineDeps(runCtx, cfg, log, videoRoot)
			if err != nil {
				return err
			}
			defer cleanup()

			vs, err := ctx.vectorStore(runCtx, cfg, true, log)
			if err != nil {
				return err
			}
			defer vs.Close()

			led, err := ledger.Open(cfg.Paths.LedgerPath)
			if err != nil {
				return err
			}
			defer led.Close()

			reg := metrics.New()
			deps.Metrics = ingest.NewMetrics(reg)

			nc, err := natsutil.Connect(cfg.Queue.URL, "vidrag-worker", log)
			if err != nil {
				return err
			}
			defer nc.Drain()

			sub, err := ingest.StartConsumer(runCtx, nc, deps, ingest.WorkerDeps{
				Index:      vs,
				Ledger:     led,
				Subject:    cfg.Queue.Subject,
				DLQSubject: cfg.Queue.DLQSubject,
				Queue:      cfg.Queue.Group,
				BatchSize:  cfg.Index.UpsertBatch,
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()
			log.Info("worker started", "subject", sub.Subject, "queue", cfg.Queue.Group)

			if cfg.Metrics.Addr == "" {
				<-runCtx.Done()
				return nil
			}
			wrap := mid.Wrapper(mid.Recover(log), mid.Trace("metrics"), mid.Count(reg), mid.AccessLog(log))
			return metrics.Serve(runCtx, cfg.Metrics.Addr, reg, wrap, log)
		},
	}

	cmd.Flags().StringVar(&videoRoot, "video-root", "", "Resolve metadata from this video library layout instead of the catalog")
	return cmd
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [filename...]",
		Short: "Publish ingest jobs for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = splitList(os.Getenv("VIDEO_FILENAMES"))
			}
			if len(names) == 0 {
				return errors.New("no videos given: pass filenames or set VIDEO_FILENAMES")
			}

			nc, err := natsutil.Connect(cfg.Queue.URL, "vidrag-enqueue", ctx.log(cmd))
			if err != nil {
				return err
			}
			defer nc.Close()

			for _, name := range names {
				if err := natsutil.Publish(cmd.Context(), nc, cfg.Queue.Subject, ingest.Job{Filename: name}); err != nil {
					return err
				}
			}
			if err := nc.Flush(); err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d jobs on %s\n", len(names), cfg.Queue.Subject)
			return nil
		},
	}
}
