package record

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/WessleyAI/vidrag/engine/metadata"
	"github.com/WessleyAI/vidrag/engine/segment"
	"github.com/WessleyAI/vidrag/engine/timecode"
)

// ChunkEmbedding is the intermediate form written by the transcript folder
// pipeline: a chunk of one video with its vector, before any catalog
// attributes are known.
type ChunkEmbedding struct {
	Filename     string    `json:"filename"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	ChunkText    string    `json:"chunk_text"`
	SectionTitle string    `json:"section_title"`
	Embedding    []float32 `json:"embedding"`
}

// NewChunkEmbedding pairs c with its vector.
func NewChunkEmbedding(filename string, c segment.Chunk, vec []float32) ChunkEmbedding {
	return ChunkEmbedding{
		Filename:     filename,
		Start:        c.StartTS(),
		End:          c.EndTS(),
		ChunkText:    c.Text,
		SectionTitle: c.SectionTitle,
		Embedding:    vec,
	}
}

// Chunk converts back to a segment chunk. Unreadable timestamps become 0.
func (e ChunkEmbedding) Chunk() segment.Chunk {
	return segment.Chunk{
		SectionTitle: e.SectionTitle,
		Start:        timecode.Seconds(e.Start),
		End:          timecode.Seconds(e.End),
		Text:         e.ChunkText,
	}
}

// Record builds the index record for e at position index of its video.
func (e ChunkEmbedding) Record(meta metadata.Video, index int) Record {
	c := e.Chunk()
	return Record{
		ID:        ID(meta.Filename, index, c.Start),
		Embedding: e.Embedding,
		Restricts: BuildRestricts(meta, c, meta.Filename),
	}
}

// ReadChunkEmbeddings decodes a JSON array of ChunkEmbedding.
func ReadChunkEmbeddings(r io.Reader) ([]ChunkEmbedding, error) {
	var out []ChunkEmbedding
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("record: decode chunk embeddings: %w", err)
	}
	return out, nil
}

// WriteChunkEmbeddings encodes entries as an indented JSON array.
func WriteChunkEmbeddings(w io.Writer, entries []ChunkEmbedding) error {
	if entries == nil {
		entries = []ChunkEmbedding{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("record: encode chunk embeddings: %w", err)
	}
	return nil
}
