package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bull/oncodoc/internal/report"
)

// SQLiteStore persists documents in a single SQLite file. Nearest-neighbour
// queries scan the filtered rows and rank them in process, which suits the
// report volumes of a single clinic.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

// OpenSQLite opens (or creates) the database at path with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string, dimension int) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writes and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, dimension: dimension}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	report_type TEXT NOT NULL,
	raw_content TEXT NOT NULL DEFAULT '',
	normalized_content TEXT NOT NULL DEFAULT '',
	findings_json TEXT NOT NULL DEFAULT '',
	flags_json TEXT NOT NULL DEFAULT '[]',
	doctor_summary TEXT NOT NULL DEFAULT '',
	patient_summary TEXT NOT NULL DEFAULT '',
	embedding BLOB NOT NULL,
	embedding_source TEXT NOT NULL DEFAULT '',
	patient_ref TEXT NOT NULL DEFAULT '',
	patient_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_patient ON documents(patient_ref, created_at);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(report_type);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) checkDimension(v []float32) error {
	if s.dimension > 0 && len(v) != s.dimension {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), s.dimension)
	}
	return nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	if err := s.checkDimension(doc.Embedding); err != nil {
		return err
	}

	findings, err := report.MarshalFindings(doc.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	flags, err := json.Marshal(report.OrEmpty(doc.Flags))
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (id, report_type, raw_content, normalized_content, findings_json, flags_json,
	doctor_summary, patient_summary, embedding, embedding_source, patient_ref, patient_id, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	report_type=excluded.report_type,
	raw_content=excluded.raw_content,
	normalized_content=excluded.normalized_content,
	findings_json=excluded.findings_json,
	flags_json=excluded.flags_json,
	doctor_summary=excluded.doctor_summary,
	patient_summary=excluded.patient_summary,
	embedding=excluded.embedding,
	embedding_source=excluded.embedding_source,
	patient_ref=excluded.patient_ref,
	patient_id=excluded.patient_id,
	source=excluded.source,
	created_at=excluded.created_at`,
		doc.ID, string(doc.ReportType), doc.RawContent, doc.NormalizedContent, string(findings), string(flags),
		doc.DoctorSummary, doc.PatientSummary, encodeVector(doc.Embedding), doc.EmbeddingSource,
		doc.PatientRef, doc.PatientID, doc.Source, doc.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, report_type, raw_content, normalized_content, findings_json, flags_json,
	doctor_summary, patient_summary, embedding, embedding_source, patient_ref, patient_id, source, created_at
FROM documents`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Nearest implements Store.
func (s *SQLiteStore) Nearest(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredDocument, error) {
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if filter.PatientRef != "" {
		where = append(where, "patient_ref = ?")
		args = append(args, filter.PatientRef)
	}
	if filter.ReportType != "" {
		where = append(where, "report_type = ?")
		args = append(args, string(filter.ReportType))
	}
	if filter.EmbeddingSource != "" {
		where = append(where, "embedding_source = ?")
		args = append(args, filter.EmbeddingSource)
	}
	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}
	return rankBySimilarity(vector, docs, limit), nil
}

// ListByPatient implements Store.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientRef string, since time.Time) ([]*Document, error) {
	docs, err := s.queryDocuments(ctx,
		selectColumns+` WHERE patient_ref = ? AND created_at >= ? ORDER BY created_at DESC, id ASC`,
		patientRef, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list by patient: %w", err)
	}
	return docs, nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT report_type, patient_ref, created_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	b := newStatsBuilder(since)
	for rows.Next() {
		var reportType, patientRef string
		var createdAt int64
		if err := rows.Scan(&reportType, &patientRef, &createdAt); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		b.add(report.ReportType(reportType), patientRef, time.Unix(0, createdAt).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return b.result(), nil
}

// Health implements Store.
func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc                  Document
		reportType, findings string
		flags                string
		embedding            []byte
		createdAt            int64
	)
	err := row.Scan(&doc.ID, &reportType, &doc.RawContent, &doc.NormalizedContent, &findings, &flags,
		&doc.DoctorSummary, &doc.PatientSummary, &embedding, &doc.EmbeddingSource,
		&doc.PatientRef, &doc.PatientID, &doc.Source, &createdAt)
	if err != nil {
		return nil, err
	}

	doc.ReportType = report.ReportType(reportType)
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.Embedding = decodeVector(embedding)
	if doc.Findings, err = report.UnmarshalFindings(doc.ReportType, []byte(findings)); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(flags), &doc.Flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return &doc, nil
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
