// Package graph keeps a Neo4j catalog of videos and their ordered sections:
// (Video)-[:HAS_SECTION]->(Section)-[:NEXT]->(Section).
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Store provides the section catalog operations.
type Store struct {
	newSession func(ctx context.Context) runner
}

// New creates a Store over a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{newSession: func(ctx context.Context) runner {
		return &sessionAdapter{sess: driver.NewSession(ctx, neo4j.SessionConfig{})}
	}}
}

// Connect opens a driver with basic auth and verifies connectivity.
func Connect(ctx context.Context, url, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect %s: %w", url, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify %s: %w", url, err)
	}
	return driver, nil
}

var schema = []string{
	`CREATE CONSTRAINT video_filename IF NOT EXISTS FOR (v:Video) REQUIRE v.filename IS UNIQUE`,
	`CREATE CONSTRAINT section_id IF NOT EXISTS FOR (s:Section) REQUIRE s.id IS UNIQUE`,
}

// EnsureSchema creates the uniqueness constraints.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sess := s.newSession(ctx)
	defer sess.Close(ctx)
	for _, c := range schema {
		if _, err := sess.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("graph: ensure schema: %w", err)
		}
	}
	return nil
}

// SaveVideo stores a video and replaces its sections. Sections are linked
// in slice order.
func (s *Store) SaveVideo(ctx context.Context, v Video, sections []Section) error {
	sess := s.newSession(ctx)
	defer sess.Close(ctx)

	if _, err := sess.Run(ctx, `MERGE (v:Video {filename: $filename}) SET v += $props`, map[string]any{
		"filename": v.Filename,
		"props":    videoToMap(v),
	}); err != nil {
		return fmt.Errorf("graph: save video %s: %w", v.Filename, err)
	}

	if _, err := sess.Run(ctx,
		`MATCH (:Video {filename: $filename})-[:HAS_SECTION]->(s:Section) DETACH DELETE s`,
		map[string]any{"filename": v.Filename}); err != nil {
		return fmt.Errorf("graph: clear sections %s: %w", v.Filename, err)
	}

	if len(sections) == 0 {
		return nil
	}
	rows := make([]any, len(sections))
	for i, sec := range sections {
		sec.Index = i
		rows[i] = sectionToMap(sec)
	}
	cypher := `MATCH (v:Video {filename: $filename})
		 UNWIND $sections AS row
		 MERGE (s:Section {id: row.id})
		 SET s.index = row.index, s.title = row.title, s.start = row.start, s.end = row.end, s.filename = $filename
		 MERGE (v)-[:HAS_SECTION]->(s)`
	if _, err := sess.Run(ctx, cypher, map[string]any{"filename": v.Filename, "sections": rows}); err != nil {
		return fmt.Errorf("graph: save sections %s: %w", v.Filename, err)
	}

	link := `MATCH (:Video {filename: $filename})-[:HAS_SECTION]->(a:Section),
		       (:Video {filename: $filename})-[:HAS_SECTION]->(b:Section)
		 WHERE b.index = a.index + 1
		 MERGE (a)-[:NEXT]->(b)`
	if _, err := sess.Run(ctx, link, map[string]any{"filename": v.Filename}); err != nil {
		return fmt.Errorf("graph: link sections %s: %w", v.Filename, err)
	}
	return nil
}

// Sections returns the sections of a video ordered by index.
func (s *Store) Sections(ctx context.Context, filename string) ([]Section, error) {
	sess := s.newSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Video {filename: $filename})-[:HAS_SECTION]->(s:Section)
		 RETURN s.id AS id, s.index AS index, s.title AS title, s.start AS start, s.end AS end
		 ORDER BY s.index`
	res, err := sess.Run(ctx, cypher, map[string]any{"filename": filename})
	if err != nil {
		return nil, fmt.Errorf("graph: sections %s: %w", filename, err)
	}

	var out []Section
	for res.Next(ctx) {
		out = append(out, sectionFromRecord(filename, res.Record()))
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("graph: sections %s: %w", filename, err)
	}
	return out, nil
}

// DeleteVideo removes a video and its sections.
func (s *Store) DeleteVideo(ctx context.Context, filename string) error {
	sess := s.newSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (v:Video {filename: $filename})
		 OPTIONAL MATCH (v)-[:HAS_SECTION]->(s:Section)
		 DETACH DELETE s, v`
	if _, err := sess.Run(ctx, cypher, map[string]any{"filename": filename}); err != nil {
		return fmt.Errorf("graph: delete video %s: %w", filename, err)
	}
	return nil
}

func sectionFromRecord(filename string, rec *neo4j.Record) Section {
	sec := Section{Filename: filename}
	if v, ok := rec.Get("id"); ok {
		sec.ID, _ = v.(string)
	}
	if v, ok := rec.Get("index"); ok {
		if n, ok := v.(int64); ok {
			sec.Index = int(n)
		}
	}
	if v, ok := rec.Get("title"); ok {
		sec.Title, _ = v.(string)
	}
	if v, ok := rec.Get("start"); ok {
		sec.Start = toFloat(v)
	}
	if v, ok := rec.Get("end"); ok {
		sec.End = toFloat(v)
	}
	return sec
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
