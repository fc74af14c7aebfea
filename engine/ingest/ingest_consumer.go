package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/engine/semantic"
	"github.com/WessleyAI/vidrag/pkg/natsutil"
)

const (
	// IngestSubject is the default NATS subject for ingest jobs.
	IngestSubject = "vidrag.ingest"
	// DLQSubject is the default dead letter subject for failed jobs.
	DLQSubject = "vidrag.ingest.dlq"
	// QueueGroup is the default queue group shared by workers.
	QueueGroup = "vidrag-workers"
)

// Indexer upserts records in batches.
type Indexer interface {
	UpsertBatched(ctx context.Context, records []record.Record, size int) semantic.BatchReport
}

// Ledger remembers finished jobs across restarts.
type Ledger interface {
	Done(key string) (bool, error)
	Mark(key string, records int) error
}

// WorkerDeps holds what the queue worker needs beyond the pipeline.
type WorkerDeps struct {
	Index      Indexer
	Ledger     Ledger // optional
	Subject    string
	DLQSubject string
	Queue      string
	BatchSize  int
}

// dlqMessage is published to the DLQ when a job fails. Jobs are not retried.
type dlqMessage struct {
	Job      *Job      `json:"job,omitempty"`
	Raw      string    `json:"raw,omitempty"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Reply is sent back to callers that published a job as a request.
type Reply struct {
	Filename string `json:"filename"`
	Records  int    `json:"records"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Worker runs queued jobs through the pipeline and into the index.
type Worker struct {
	nc     *nats.Conn
	runner *Runner
	deps   Deps
	wd     WorkerDeps
	log    *slog.Logger
}

// NewWorker builds a Worker. Empty subjects fall back to the package
// defaults.
func NewWorker(nc *nats.Conn, deps Deps, wd WorkerDeps) *Worker {
	if wd.Subject == "" {
		wd.Subject = IngestSubject
	}
	if wd.DLQSubject == "" {
		wd.DLQSubject = DLQSubject
	}
	if wd.Queue == "" {
		wd.Queue = QueueGroup
	}
	return &Worker{nc: nc, runner: NewRunner(deps), deps: deps, wd: wd, log: deps.logger()}
}

// Handle processes one job. A job already in the ledger is skipped. The
// records are checked against the configured dimension before the first
// index write, and any failed upsert batch fails the job.
func (w *Worker) Handle(ctx context.Context, job Job) (Reply, error) {
	reply := Reply{Filename: job.Filename}
	if job.Filename == "" {
		return reply, errors.New("ingest: job without filename")
	}
	if w.wd.Ledger != nil {
		done, err := w.wd.Ledger.Done(job.Filename)
		if err != nil {
			w.log.Warn("ingest: ledger check failed", "item", job.Filename, "error", err)
		} else if done {
			w.log.Info("ingest: skipping finished job", "item", job.Filename)
			w.deps.Metrics.itemDone("skipped", 0)
			reply.Skipped = true
			return reply, nil
		}
	}

	it, err := w.runner.Process(ctx, job.Filename)
	if err != nil {
		return reply, err
	}
	if w.deps.Dims > 0 {
		for i, r := range it.Records {
			if len(r.Embedding) != w.deps.Dims {
				return reply, fmt.Errorf("ingest: record %d: %w", i, record.ErrDimensionMismatch)
			}
		}
	}
	rep := w.wd.Index.UpsertBatched(ctx, it.Records, w.wd.BatchSize)
	if rep.Failed > 0 || len(rep.Errors) > 0 {
		return reply, fmt.Errorf("ingest: upsert %s: %d of %d batches failed: %w", job.Filename, rep.Failed, rep.Batches, errors.Join(rep.Errors...))
	}
	if w.wd.Ledger != nil {
		if err := w.wd.Ledger.Mark(job.Filename, len(it.Records)); err != nil {
			w.log.Warn("ingest: ledger mark failed", "item", job.Filename, "error", err)
		}
	}
	reply.Records = len(it.Records)
	w.deps.Metrics.itemDone("ok", reply.Records)
	return reply, nil
}

func (w *Worker) onJob(ctx context.Context, job Job, msg *nats.Msg) {
	reply, err := w.Handle(ctx, job)
	if err != nil {
		w.log.Error("ingest: job failed", "item", job.Filename, "error", err)
		w.deps.Metrics.itemDone("failed", 0)
		reply.Error = err.Error()
		w.deadLetter(ctx, dlqMessage{Job: &job, Error: err.Error(), FailedAt: time.Now().UTC()})
	} else if !reply.Skipped {
		w.log.Info("ingest: job done", "item", job.Filename, "records", reply.Records)
	}
	respond(msg, reply, w.log)
}

func (w *Worker) onMalformed(msg *nats.Msg, err error) {
	w.log.Error("ingest: unmarshal failed", "error", err)
	w.deadLetter(context.Background(), dlqMessage{Raw: string(msg.Data), Error: err.Error(), FailedAt: time.Now().UTC()})
	respond(msg, Reply{Error: err.Error()}, w.log)
}

func (w *Worker) deadLetter(ctx context.Context, m dlqMessage) {
	if err := natsutil.Publish(ctx, w.nc, w.wd.DLQSubject, m); err != nil {
		w.log.Error("ingest: DLQ publish failed", "error", err)
		return
	}
	w.deps.Metrics.dlq()
}

func respond(msg *nats.Msg, r Reply, log *slog.Logger) {
	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(r)
	if err := msg.Respond(data); err != nil {
		log.Warn("ingest: respond failed", "error", err)
	}
}

// Start subscribes the worker to its subject in its queue group. Jobs run
// under contexts derived from ctx.
func (w *Worker) Start(ctx context.Context) (*nats.Subscription, error) {
	return natsutil.QueueSubscribe[Job](ctx, w.nc, w.wd.Subject, w.wd.Queue, w.onJob, w.onMalformed)
}

// StartConsumer builds a Worker and subscribes it.
func StartConsumer(ctx context.Context, nc *nats.Conn, deps Deps, wd WorkerDeps) (*nats.Subscription, error) {
	return NewWorker(nc, deps, wd).Start(ctx)
}
