package whisper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip_audio_16k.wav")
	if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
		}
		if r.FormValue("response_format") != "verbose_json" || r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Error(err)
		} else {
			b, _ := io.ReadAll(f)
			if hdr.Filename != "clip_audio_16k.wav" || string(b) != "RIFF" {
				t.Errorf("file = %s %q", hdr.Filename, b)
			}
		}
		_, _ = w.Write([]byte(`{"language":"english","duration":30,"segments":[
			{"start":0,"end":4.2,"text":" Disconnect the battery."},
			{"start":4.2,"end":5,"text":"   "},
			{"start":5,"end":12.5,"text":"Remove the shroud."}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/", "key", "whisper-1", WithLanguage("en"))
	tr, err := c.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("segments = %+v", tr.Segments)
	}
	if tr.Segments[0].Text != "Disconnect the battery." || tr.Segments[1].Start != 5 {
		t.Fatalf("segments = %+v", tr.Segments)
	}
}

func TestTranscribeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()
	_, err := New(srv.URL, "", "m").Transcribe(context.Background(), writeAudio(t))
	if err == nil || !strings.Contains(err.Error(), "http 413") {
		t.Fatalf("err = %v", err)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	if _, err := New("", "", "m").Transcribe(context.Background(), "/nonexistent.wav"); err == nil {
		t.Fatal("expected error")
	}
}
