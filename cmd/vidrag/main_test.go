package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/vidrag/engine/ingest"
	"github.com/WessleyAI/vidrag/engine/record"
)

type cliEnv struct {
	dir        string
	configPath string
}

// setupCLI isolates HOME and the environment and writes a config whose
// paths all live under a temp dir.
func setupCLI(t *testing.T, extra string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"VIDRAG_CONFIG", "VIDRAG_OUTPUT", "VIDRAG_CATALOG", "GCS_TOKEN", "GOOGLE_OAUTH_ACCESS_TOKEN",
		"OPENAI_API_KEY", "VIDRAG_LLM_API_KEY", "OPENROUTER_API_KEY", "OLLAMA_URL", "QDRANT_ADDR",
		"NEO4J_URL", "NEO4J_USER", "NEO4J_PASSWORD", "NATS_URL", "VIDRAG_LOG_LEVEL", "VIDEO_FILENAMES",
	} {
		t.Setenv(k, "")
	}

	cfg := fmt.Sprintf(`[paths]
work_dir = %q
output = %q

[embedding]
dims = 3

[logging]
level = "error"
format = "json"
`, filepath.Join(dir, "work"), filepath.Join(dir, "out.jsonl"))
	if extra != "" {
		cfg += "\n" + extra + "\n"
	}
	path := filepath.Join(dir, "vidrag.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{dir: dir, configPath: path}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, s, want string) {
	t.Helper()
	if !strings.Contains(s, want) {
		t.Fatalf("output missing %q:\n%s", want, s)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLI(t, "")

	out, _, err := runCLI(t, "--config", env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "disabled (no API key)")

	target := filepath.Join(env.dir, "new", "config.toml")
	out, _, err = runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestConfigInitSkipsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	broken := filepath.Join(dir, "broken.toml")
	writeFile(t, broken, "[nope]\nkey = 1\n")

	if _, _, err := runCLI(t, "--config", broken, "config", "validate"); err == nil {
		t.Fatal("validate should reject unknown keys")
	}
	target := filepath.Join(dir, "fresh.toml")
	if _, _, err := runCLI(t, "--config", broken, "config", "init", "--path", target); err != nil {
		t.Fatalf("init must not load the config: %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	env := setupCLI(t, "")
	good := filepath.Join(env.dir, "good.jsonl")
	writeFile(t, good, `{"id":"a","embedding":[0.1,0.2,0.3],"restricts":[]}
{"id":"b","embedding":[0.4,0.5,0.6],"restricts":[]}
`)
	out, _, err := runCLI(t, "-c", env.configPath, "validate", good)
	if err != nil {
		t.Fatalf("validate good: %v", err)
	}
	requireContains(t, out, "2 records valid (dims 3)")

	bad := filepath.Join(env.dir, "bad.jsonl")
	writeFile(t, bad, `{"id":"a","embedding":[0.1,0.2,0.3],"restricts":[]}
{"id":"b","embedding":[0.4,0.5],"restricts":[]}
`)
	_, _, err = runCLI(t, "-c", env.configPath, "validate", bad)
	if err == nil {
		t.Fatal("expected dimension mismatch")
	}
	requireContains(t, err.Error(), "line 2")

	if _, _, err := runCLI(t, "-c", env.configPath, "validate", "--dims", "2", bad); err == nil {
		t.Fatal("first line has 3 dims; --dims 2 should fail")
	}
}

func TestRestrictCommand(t *testing.T) {
	env := setupCLI(t, "")
	root := filepath.Join(env.dir, "library")
	writeFile(t, filepath.Join(root, "Euro6", "Cars", "Series1", "ModelA", "Diesel", "Engine", "vid1.mp4"), "")

	entries := []record.ChunkEmbedding{
		{Filename: "vid1", Start: "00:00:00.00", End: "00:00:30.00", ChunkText: "remove the cover", SectionTitle: "Intro", Embedding: []float32{1, 0, 0}},
		{Filename: "vid1", Start: "00:00:30.00", End: "00:01:00.00", ChunkText: "loosen the bolts", SectionTitle: "Remove", Embedding: []float32{0, 1, 0}},
		{Filename: "ghost", Start: "00:00:00.00", End: "00:00:10.00", ChunkText: "nothing", SectionTitle: "Process", Embedding: []float32{0, 0, 1}},
		{Filename: "vid1", Start: "00:01:00.00", End: "00:01:10.00", ChunkText: "no vector", SectionTitle: "Outro"},
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(env.dir, "chunks.json")
	writeFile(t, in, string(raw))
	outPath := filepath.Join(env.dir, "restricts.jsonl")

	out, _, err := runCLI(t, "-c", env.configPath, "restrict", in, "--video-root", root, "--output", outPath)
	if err != nil {
		t.Fatalf("restrict: %v", err)
	}
	requireContains(t, out, "Wrote 2 records")

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, _, err := record.ReadAll(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if got := recs[0].Value(record.NSFilename); got != "vid1.mp4" {
		t.Errorf("filename = %q", got)
	}
	if got := recs[1].Value(record.NSSectionTitle); got != "Remove" {
		t.Errorf("section = %q", got)
	}
	if got := recs[0].Values(record.NSModelName); len(got) != 1 || got[0] != "ModelA" {
		t.Errorf("model_name = %v", got)
	}
	if recs[0].ID == recs[1].ID {
		t.Error("ids must differ per chunk")
	}
}

func TestChunkCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			vecs[i] = []float32{float32(i), 1, 2}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
	defer srv.Close()

	env := setupCLI(t, "")
	t.Setenv("OLLAMA_URL", srv.URL)
	dir := filepath.Join(env.dir, "transcripts")
	writeFile(t, filepath.Join(dir, "clip.txt"), strings.Join([]string{
		"00:00:00 | 00:00:10 | first",
		"00:00:10 | 00:00:25 | second",
		"00:00:25 | 00:00:40 | third",
	}, "\n")+"\n")
	writeFile(t, filepath.Join(dir, "empty.txt"), "")
	outPath := filepath.Join(env.dir, "chunks.json")

	out, _, err := runCLI(t, "-c", env.configPath, "chunk", dir, "--output", outPath)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	requireContains(t, out, "Wrote 1 chunk embeddings")

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	entries, err := record.ReadChunkEmbeddings(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Filename != "clip" || e.SectionTitle != "Process" || e.ChunkText != "first second third" {
		t.Errorf("entry = %+v", e)
	}
	if e.Start != "00:00:00.00" || e.End != "00:00:40.00" {
		t.Errorf("span = %s - %s", e.Start, e.End)
	}
	if len(e.Embedding) != 3 {
		t.Errorf("embedding dims = %d", len(e.Embedding))
	}
}

func TestChunkCommandEmptyFolder(t *testing.T) {
	env := setupCLI(t, "")
	empty := filepath.Join(env.dir, "none")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, "-c", env.configPath, "chunk", empty)
	if err == nil {
		t.Fatal("expected error for a folder without transcripts")
	}
	requireContains(t, err.Error(), "no transcripts")
}

func TestIngestRequiresFilenames(t *testing.T) {
	env := setupCLI(t, "")
	_, _, err := runCLI(t, "-c", env.configPath, "ingest")
	if err == nil {
		t.Fatal("expected error without filenames")
	}
	requireContains(t, err.Error(), "VIDEO_FILENAMES")
}

func TestWriteRecordsPublishesOnlyValidOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "records.jsonl")
	writeFile(t, out, "previous\n")

	_, _, err := writeRecords(out, 3, func(w *record.Writer) (ingest.Summary, error) {
		return ingest.Summary{}, w.Write(record.Record{ID: "x", Embedding: []float32{1, 2}})
	})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	data, _ := os.ReadFile(out)
	if string(data) != "previous\n" {
		t.Fatalf("output replaced after failed validation: %q", data)
	}

	_, n, err := writeRecords(out, 3, func(w *record.Writer) (ingest.Summary, error) {
		return ingest.Summary{}, w.Write(record.Record{ID: "y", Embedding: []float32{1, 2, 3}})
	})
	if err != nil {
		t.Fatalf("writeRecords: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d", n)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, ".records.jsonl.*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"series=S1,S2", "fuel_type=Diesel", "series=S3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("filters = %+v", got)
	}
	if got[0].Namespace != "series" || strings.Join(got[0].Allow, ",") != "S1,S2,S3" {
		t.Errorf("series filter = %+v", got[0])
	}
	if got[1].Namespace != "fuel_type" || len(got[1].Allow) != 1 {
		t.Errorf("fuel filter = %+v", got[1])
	}

	for _, bad := range []string{"series", "=x", "series="} {
		if _, err := parseFilters([]string{bad}); err == nil {
			t.Errorf("parseFilters(%q) should fail", bad)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a.mp4, ,b.mp4,")
	if strings.Join(got, "|") != "a.mp4|b.mp4" {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("empty input should give nil")
	}
}
