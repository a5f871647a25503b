package tracing

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tebeka/atexit"

	"github.com/tempolab/modchart/sim/id"
)

// DefaultBatchSize is the number of records buffered before a flush.
const DefaultBatchSize = 10000

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB
	statement *sql.Stmt

	dbName    string
	pending   []Record
	batchSize int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The database is
// path + ".sqlite3". An empty path picks a unique name. Buffered records are
// flushed when the program exits through atexit.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: DefaultBatchSize,
	}

	atexit.Register(func() { _ = w.Close() })

	return w
}

// WithBatchSize sets how many records are buffered before a flush.
func (t *SQLiteTraceWriter) WithBatchSize(n int) *SQLiteTraceWriter {
	t.batchSize = n
	return t
}

// FileName returns the name of the database file.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init creates the database. It fails if the file already exists.
func (t *SQLiteTraceWriter) Init() error {
	if t.dbName == "" {
		t.dbName = id.SessionName("modchart_trace")
	}

	filename := t.FileName()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("open trace database: %w", err)
	}

	t.DB = db

	if err := t.createTable(); err != nil {
		return err
	}

	stmt, err := t.Prepare(`INSERT INTO trace
		(kind, domain, vertex_id, vertex_time, playhead, error)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trace statement: %w", err)
	}

	t.statement = stmt

	return nil
}

func (t *SQLiteTraceWriter) createTable() error {
	stmts := []string{
		`create table trace
		(
			kind        varchar(16)  not null,
			domain      varchar(200) not null default '',
			vertex_id   integer      not null,
			vertex_time integer      not null,
			playhead    integer      not null,
			error       text         not null default ''
		);`,
		`create index trace_kind_index on trace (kind);`,
		`create index trace_vertex_id_index on trace (vertex_id);`,
		`create index trace_playhead_index on trace (playhead);`,
	}

	for _, s := range stmts {
		if _, err := t.Exec(s); err != nil {
			return fmt.Errorf("create trace table: %w", err)
		}
	}

	return nil
}

// Write buffers a record and flushes when the batch is full.
func (t *SQLiteTraceWriter) Write(r Record) error {
	t.pending = append(t.pending, r)
	if len(t.pending) >= t.batchSize {
		return t.Flush()
	}

	return nil
}

// Flush writes all the buffered records in one transaction.
func (t *SQLiteTraceWriter) Flush() error {
	if len(t.pending) == 0 {
		return nil
	}

	if t.DB == nil {
		return errors.New("trace database is not initialized")
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("begin trace flush: %w", err)
	}

	stmt := tx.Stmt(t.statement)
	for _, r := range t.pending {
		_, err := stmt.Exec(
			string(r.Kind),
			r.Domain,
			r.VertexID,
			r.VertexTime,
			r.Playhead,
			r.Err,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert trace record %+v: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace flush: %w", err)
	}

	t.pending = nil

	return nil
}

// Close flushes and closes the database. Closing twice is fine.
func (t *SQLiteTraceWriter) Close() error {
	if t.DB == nil {
		return nil
	}

	err := t.Flush()

	if t.statement != nil {
		t.statement.Close()
		t.statement = nil
	}

	err = errors.Join(err, t.DB.Close())
	t.DB = nil

	return err
}
