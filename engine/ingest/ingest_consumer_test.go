package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/engine/semantic"
	"github.com/WessleyAI/vidrag/pkg/ledger"
)

type fakeIndex struct {
	mu      sync.Mutex
	records []record.Record
	fail    bool
}

func (f *fakeIndex) UpsertBatched(_ context.Context, recs []record.Record, size int) semantic.BatchReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return semantic.BatchReport{Batches: 1, Failed: 1, Errors: []error{errors.New("qdrant down")}}
	}
	f.records = append(f.records, recs...)
	return semantic.BatchReport{Batches: 1, Upserted: len(recs)}
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func request(t *testing.T, nc *nats.Conn, data []byte) Reply {
	t.Helper()
	msg, err := nc.Request(IngestSubject, data, 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var r Reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return r
}

func TestWorker_EndToEnd(t *testing.T) {
	nc := startTestNATS(t)
	deps, _, _ := testDeps(t)
	idx := &fakeIndex{}
	led := openLedger(t)

	dlq := make(chan *nats.Msg, 4)
	dsub, err := nc.ChanSubscribe(DLQSubject, dlq)
	if err != nil {
		t.Fatal(err)
	}
	defer dsub.Unsubscribe()

	sub, err := StartConsumer(context.Background(), nc, deps, WorkerDeps{Index: idx, Ledger: led, BatchSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	r := request(t, nc, []byte(`{"filename":"a.mp4"}`))
	if r.Error != "" || r.Records != 1 || r.Skipped {
		t.Fatalf("reply = %+v", r)
	}
	if idx.count() != 1 {
		t.Fatalf("indexed = %d", idx.count())
	}
	if done, _ := led.Done("a.mp4"); !done {
		t.Fatal("job should be in the ledger")
	}

	r = request(t, nc, []byte(`{"filename":"a.mp4"}`))
	if !r.Skipped || idx.count() != 1 {
		t.Fatalf("second run should be skipped: %+v indexed=%d", r, idx.count())
	}

	r = request(t, nc, []byte(`{"filename":"zzz.mp4"}`))
	if r.Error == "" {
		t.Fatal("expected error reply")
	}
	select {
	case m := <-dlq:
		var got dlqMessage
		if err := json.Unmarshal(m.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Job == nil || got.Job.Filename != "zzz.mp4" || got.Error == "" {
			t.Fatalf("dlq = %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no DLQ message")
	}

	r = request(t, nc, []byte(`not json`))
	if r.Error == "" {
		t.Fatal("expected malformed error reply")
	}
	select {
	case m := <-dlq:
		var got dlqMessage
		if err := json.Unmarshal(m.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Raw != "not json" || got.Job != nil {
			t.Fatalf("dlq = %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no DLQ message for malformed job")
	}
}

func TestWorker_HandleUpsertFailure(t *testing.T) {
	deps, _, _ := testDeps(t)
	led := openLedger(t)
	w := NewWorker(nil, deps, WorkerDeps{Index: &fakeIndex{fail: true}, Ledger: led})
	if _, err := w.Handle(context.Background(), Job{Filename: "a.mp4"}); err == nil {
		t.Fatal("expected upsert error")
	}
	if done, _ := led.Done("a.mp4"); done {
		t.Fatal("failed job must not be marked done")
	}
}

func TestWorker_HandleEmptyFilename(t *testing.T) {
	deps, _, _ := testDeps(t)
	w := NewWorker(nil, deps, WorkerDeps{Index: &fakeIndex{}})
	if _, err := w.Handle(context.Background(), Job{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	deps, _, _ := testDeps(t)
	w := NewWorker(nil, deps, WorkerDeps{})
	if w.wd.Subject != IngestSubject || w.wd.DLQSubject != DLQSubject || w.wd.Queue != QueueGroup {
		t.Fatalf("defaults = %+v", w.wd)
	}
}
