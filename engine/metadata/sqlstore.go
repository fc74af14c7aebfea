package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
    filename           TEXT PRIMARY KEY,
    gcs_url            TEXT NOT NULL DEFAULT '',
    div_name           TEXT NOT NULL DEFAULT '',
    emission_type      TEXT NOT NULL DEFAULT '',
    segment_name       TEXT NOT NULL DEFAULT '',
    language_name      TEXT NOT NULL DEFAULT '',
    applicability_type TEXT NOT NULL DEFAULT '',
    application_type   TEXT NOT NULL DEFAULT '[]',
    model_name         TEXT NOT NULL DEFAULT '[]',
    fuel_type          TEXT NOT NULL DEFAULT '',
    aggregate_name     TEXT NOT NULL DEFAULT ''
);
CREATE VIEW IF NOT EXISTS video_metadata AS
    SELECT filename, gcs_url, div_name, emission_type, segment_name,
           language_name, applicability_type, application_type, model_name,
           fuel_type, aggregate_name
    FROM videos;
`

// SQLStore reads video metadata from the video_metadata view of a SQLite
// catalog database.
type SQLStore struct {
	db   *sql.DB
	path string
}

// Open connects to the catalog at path and ensures the schema exists.
func Open(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metadata: open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("metadata: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metadata: apply schema: %w", err)
	}
	return &SQLStore{db: db, path: path}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the metadata row for filename. A missing row is ErrNotFound;
// a row without a storage URL is ErrMissingField.
func (s *SQLStore) Lookup(ctx context.Context, filename string) (Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT filename, gcs_url, div_name, emission_type,
        segment_name, language_name, applicability_type, application_type,
        model_name, fuel_type, aggregate_name
        FROM video_metadata WHERE filename = ?`, filename)

	var (
		v              Video
		series, models string
	)
	err := row.Scan(&v.Filename, &v.GCSURL, &v.Division, &v.Emission, &v.Segment,
		&v.Language, &v.ApplicabilityType, &series, &models, &v.FuelType, &v.Aggregate)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return Video{}, fmt.Errorf("metadata: lookup %s: %w", filename, err)
	}
	if v.Series, err = decodeList(series); err != nil {
		return Video{}, fmt.Errorf("metadata: decode application_type for %s: %w", filename, err)
	}
	if v.ModelNames, err = decodeList(models); err != nil {
		return Video{}, fmt.Errorf("metadata: decode model_name for %s: %w", filename, err)
	}
	if err := v.Validate(); err != nil {
		return Video{}, err
	}
	return v, nil
}

// Put inserts or replaces the catalog row for v.
func (s *SQLStore) Put(ctx context.Context, v Video) error {
	series, err := encodeList(v.Series)
	if err != nil {
		return err
	}
	models, err := encodeList(v.ModelNames)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO videos (
            filename, gcs_url, div_name, emission_type, segment_name,
            language_name, applicability_type, application_type, model_name,
            fuel_type, aggregate_name
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Filename, v.GCSURL, v.Division, v.Emission, v.Segment, v.Language,
		v.ApplicabilityType, series, models, v.FuelType, v.Aggregate)
	if err != nil {
		return fmt.Errorf("metadata: put %s: %w", v.Filename, err)
	}
	return nil
}

// decodeList accepts a JSON array, a bare scalar or a comma separated list.
func decodeList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return compact(out), nil
	}
	return compact(strings.Split(raw, ",")), nil
}

func encodeList(vals []string) (string, error) {
	vals = compact(vals)
	if len(vals) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "", fmt.Errorf("metadata: encode list: %w", err)
	}
	return string(b), nil
}

func compact(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
