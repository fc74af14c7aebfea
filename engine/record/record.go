// Package record turns embedded chunks into index records: an id, the
// vector and the namespace restrictions the index filters on.
package record

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/WessleyAI/vidrag/engine/metadata"
	"github.com/WessleyAI/vidrag/engine/segment"
)

// DataSource tags every video record.
const DataSource = "video"

// Namespace names used in restrictions.
const (
	NSFilename          = "filename"
	NSStart             = "start"
	NSEnd               = "end"
	NSChunkText         = "chunk_text"
	NSSectionTitle      = "section_title"
	NSGCSURL            = "gcs_url"
	NSDataSource        = "data_source"
	NSDivision          = "division"
	NSEmission          = "emission"
	NSSegment           = "segment"
	NSLanguage          = "language"
	NSApplicabilityType = "applicability_type"
	NSSeries            = "series"
	NSModelName         = "model_name"
	NSFuelType          = "fuel_type"
	NSAggregate         = "aggregate"
)

// Restriction is one namespace with its allowed values.
type Restriction struct {
	Namespace string   `json:"namespace"`
	Allow     []string `json:"allow"`
}

// Record is one index datapoint.
type Record struct {
	ID        string        `json:"id"`
	Embedding []float32     `json:"embedding"`
	Restricts []Restriction `json:"restricts"`
}

// Value returns the first allowed value of namespace.
func (r Record) Value(namespace string) string {
	if v := r.Values(namespace); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all allowed values of namespace.
func (r Record) Values(namespace string) []string {
	for _, rs := range r.Restricts {
		if rs.Namespace == namespace {
			return rs.Allow
		}
	}
	return nil
}

// BuildRestricts returns the restrictions for one chunk of a video.
func BuildRestricts(meta metadata.Video, chunk segment.Chunk, filename string) []Restriction {
	rs := []Restriction{
		one(NSFilename, filename),
		one(NSStart, chunk.StartTS()),
		one(NSEnd, chunk.EndTS()),
		one(NSChunkText, chunk.Text),
		one(NSSectionTitle, chunk.SectionTitle),
		one(NSGCSURL, meta.GCSURL),
		one(NSDataSource, DataSource),
	}

	for _, opt := range []struct{ ns, v string }{
		{NSDivision, meta.Division},
		{NSEmission, meta.Emission},
		{NSSegment, meta.Segment},
		{NSLanguage, meta.Language},
		{NSApplicabilityType, meta.ApplicabilityType},
	} {
		if opt.v != "" {
			rs = append(rs, one(opt.ns, opt.v))
		}
	}

	if meta.Global() {
		return rs
	}
	if len(meta.Series) > 0 {
		rs = append(rs, Restriction{Namespace: NSSeries, Allow: append([]string(nil), meta.Series...)})
	}
	if len(meta.ModelNames) > 0 {
		rs = append(rs, Restriction{Namespace: NSModelName, Allow: append([]string(nil), meta.ModelNames...)})
	}
	if meta.FuelType != "" {
		rs = append(rs, one(NSFuelType, meta.FuelType))
	}
	if meta.Aggregate != "" {
		rs = append(rs, one(NSAggregate, meta.Aggregate))
	}
	return rs
}

// BuildRecords pairs each chunk with its embedding. The counts must match.
func BuildRecords(chunks []segment.Chunk, embeddings [][]float32, meta metadata.Video, filename string) ([]Record, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("record: build: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	out := make([]Record, len(chunks))
	for i, c := range chunks {
		out[i] = Record{
			ID:        ID(filename, i, c.Start),
			Embedding: embeddings[i],
			Restricts: BuildRestricts(meta, c, filename),
		}
	}
	return out, nil
}

// ID returns a stable id for the index-th chunk of filename starting at
// start seconds, so re-ingesting a video overwrites its points.
func ID(filename string, index int, start float64) string {
	key := filename + "-" + strconv.Itoa(index) + "-" + strconv.FormatFloat(start, 'f', 2, 64)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func one(ns, v string) Restriction {
	return Restriction{Namespace: ns, Allow: []string{v}}
}
