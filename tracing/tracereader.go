package tracing

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// SQLiteTraceReader reads records written by a SQLiteTraceWriter.
type SQLiteTraceReader struct {
	*sql.DB
}

// NewSQLiteTraceReader opens an existing trace database file.
func NewSQLiteTraceReader(filename string) (*SQLiteTraceReader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("open trace %s: %w", filename, err)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", filename, err)
	}

	return &SQLiteTraceReader{DB: db}, nil
}

// Query filters the records to read.
type Query struct {
	Kind     Kind
	VertexID int64
	Limit    int
}

// Records returns the records that match q in the order they were written.
func (r *SQLiteTraceReader) Records(
	ctx context.Context,
	q Query,
) ([]Record, error) {
	sqlStr := `SELECT kind, domain, vertex_id, vertex_time, playhead, error
		FROM trace WHERE 1 = 1`
	var args []any

	if q.Kind != "" {
		sqlStr += " AND kind = ?"
		args = append(args, string(q.Kind))
	}

	if q.VertexID != 0 {
		sqlStr += " AND vertex_id = ?"
		args = append(args, q.VertexID)
	}

	sqlStr += " ORDER BY rowid"

	if q.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var kind string

		err := rows.Scan(&kind, &rec.Domain, &rec.VertexID,
			&rec.VertexTime, &rec.Playhead, &rec.Err)
		if err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}

		rec.Kind = Kind(kind)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	return records, nil
}
