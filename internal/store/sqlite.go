package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// documentDB persists documents in SQLite. It is the hydration source for
// BM25 hits and the rebuild source for keyword indexes.
type documentDB struct {
	db *sql.DB
}

// openDocumentDB opens (or creates) the document database at path.
// An empty path opens an in-memory database for testing.
func openDocumentDB(path string) (*documentDB, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = filepath.Clean(path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, derrors.ConfigError("failed to open document database", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, derrors.ConfigError("failed to set pragma", err)
		}
	}

	d := &documentDB{db: db}
	if err := d.initSchema(); err != nil {
		_ = db.Close()
		return nil, derrors.ConfigError("failed to initialize schema", err)
	}

	return d, nil
}

func (d *documentDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT NOT NULL,
		collection TEXT NOT NULL,
		tenant_id  TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		embedding  BLOB NOT NULL DEFAULT x'',
		created_at TEXT NOT NULL,
		PRIMARY KEY (id, collection)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents (collection, tenant_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := d.db.Exec(schema)
	return err
}

// saveDocuments upserts a batch of documents in one transaction. embeddings
// is parallel to docs; nil persists documents without vectors.
func (d *documentDB) saveDocuments(ctx context.Context, docs []*Document, embeddings [][]float32) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, collection, tenant_id, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}
		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var blob []byte
		if embeddings != nil {
			blob = encodeVector(embeddings[i])
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, doc.Collection, doc.TenantID, doc.Content, string(meta), blob,
			createdAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// listEmbeddings returns IDs and persisted vectors for a collection in
// insertion order. Documents saved without a vector are skipped.
func (d *documentDB) listEmbeddings(ctx context.Context, collection string) ([]string, [][]float32, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, embedding FROM documents
		 WHERE collection = ? AND length(embedding) > 0 ORDER BY rowid`, collection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		vectors = append(vectors, decodeVector(blob))
	}
	return ids, vectors, rows.Err()
}

// encodeVector packs a vector as little-endian float32 bits.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
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

// getDocument fetches one document, or nil if absent. A non-empty tenantID
// restricts the lookup to that tenant's documents.
func (d *documentDB) getDocument(ctx context.Context, collection, tenantID, id string) (*Document, error) {
	query := `SELECT id, collection, tenant_id, content, metadata, created_at
	          FROM documents WHERE id = ? AND collection = ?`
	args := []any{id, collection}
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}

	row := d.db.QueryRowContext(ctx, query, args...)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// getDocuments fetches a batch of documents keyed by ID.
func (d *documentDB) getDocuments(ctx context.Context, collection, tenantID string, ids []string) (map[string]*Document, error) {
	if len(ids) == 0 {
		return map[string]*Document{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, collection)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT id, collection, tenant_id, content, metadata, created_at
	          FROM documents WHERE collection = ? AND id IN (%s)`, strings.Join(placeholders, ","))
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs[doc.ID] = doc
	}
	return docs, rows.Err()
}

// listIDs returns all document IDs in a collection in insertion order.
func (d *documentDB) listIDs(ctx context.Context, collection, tenantID string) ([]string, error) {
	query := `SELECT id FROM documents WHERE collection = ?`
	args := []any{collection}
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` ORDER BY rowid`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list document IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// deleteDocuments removes documents by ID from a collection.
func (d *documentDB) deleteDocuments(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`DELETE FROM documents WHERE collection = ? AND id IN (%s)`,
		strings.Join(placeholders, ","))
	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

func (d *documentDB) count(ctx context.Context, collection string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

func (d *documentDB) close() error {
	_, _ = d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var metaJSON, createdAt string
	if err := row.Scan(&doc.ID, &doc.Collection, &doc.TenantID, &doc.Content, &metaJSON, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", doc.ID, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		doc.CreatedAt = ts
	}
	return &doc, nil
}
