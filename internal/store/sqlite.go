package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteParams are applied to every pooled connection. Write transactions
// begin IMMEDIATE so the database write lock is taken up front and a second
// session waits on busy_timeout instead of failing mid-transaction.
var sqliteParams = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=busy_timeout(5000)",
	"_pragma=synchronous(NORMAL)",
	"_pragma=foreign_keys(1)",
	"_txlock=immediate",
	"_time_format=sqlite",
}

// NewSQLite opens a SQLite database at the given path.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+strings.Join(sqliteParams, "&"))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if strings.Contains(dsn, ":memory:") {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id                     TEXT PRIMARY KEY,
	title                  TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'Pending',
	current_version_id     TEXT NOT NULL DEFAULT '',
	current_version_number INTEGER NOT NULL DEFAULT 0,
	storage_ref            TEXT NOT NULL DEFAULT '',
	attribute_count        INTEGER NOT NULL DEFAULT 0,
	overall_confidence     REAL NOT NULL DEFAULT 0,
	reviewed_by            TEXT NOT NULL DEFAULT '',
	uploaded_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS document_versions (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	version_number INTEGER NOT NULL CHECK (version_number >= 1),
	is_latest      INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT '',
	storage_ref    TEXT NOT NULL DEFAULT '',
	created_by     TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	UNIQUE (document_id, version_number)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_one_latest ON document_versions(document_id) WHERE is_latest = 1;

CREATE TABLE IF NOT EXISTS extracted_fields (
	row_id           TEXT PRIMARY KEY,
	attribute_key    TEXT NOT NULL,
	document_id      TEXT NOT NULL REFERENCES documents(id),
	version_id       TEXT NOT NULL REFERENCES document_versions(id),
	field_name       TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	section          TEXT NOT NULL DEFAULT '',
	page_number      INTEGER NOT NULL DEFAULT 0,
	field_value      TEXT NOT NULL DEFAULT '',
	corrected_value  TEXT,
	confidence_score REAL NOT NULL DEFAULT 0,
	highlighted_text TEXT NOT NULL DEFAULT '',
	bounding_box     TEXT,
	extracted_at     DATETIME NOT NULL,
	UNIQUE (attribute_key, version_id)
);

CREATE INDEX IF NOT EXISTS idx_fields_document_key ON extracted_fields(document_id, attribute_key);

CREATE TABLE IF NOT EXISTS review_sessions (
	review_id         TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL REFERENCES documents(id),
	target_version_id TEXT NOT NULL REFERENCES document_versions(id),
	reviewer          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'IN_PROGRESS',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	completed_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_document ON review_sessions(document_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON review_sessions(created_at);

CREATE TABLE IF NOT EXISTS reviewed_fields (
	id                  TEXT PRIMARY KEY,
	review_id           TEXT NOT NULL REFERENCES review_sessions(review_id),
	document_id         TEXT NOT NULL REFERENCES documents(id),
	target_version_id   TEXT NOT NULL REFERENCES document_versions(id),
	attribute_key       TEXT NOT NULL,
	original_value      TEXT NOT NULL DEFAULT '',
	old_corrected_value TEXT NOT NULL DEFAULT '',
	new_corrected_value TEXT NOT NULL DEFAULT '',
	reviewed_by         TEXT NOT NULL,
	reviewed_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviewed_fields_document ON reviewed_fields(document_id);

CREATE TABLE IF NOT EXISTS postback_logs (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	version_id    TEXT NOT NULL,
	review_id     TEXT NOT NULL DEFAULT '',
	target        TEXT NOT NULL,
	endpoint      TEXT NOT NULL DEFAULT '',
	payload       TEXT,
	status_code   INTEGER,
	response_body TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	attempts      INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_postback_logs_document ON postback_logs(document_id);
CREATE INDEX IF NOT EXISTS idx_postback_logs_created ON postback_logs(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify("sqlite: rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func scanLiteDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var status string
	err := row.Scan(&d.ID, &d.Title, &status, &d.CurrentVersionID, &d.CurrentVersionNumber,
		&d.StorageRef, &d.AttributeCount, &d.OverallConfidence, &d.ReviewedBy, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	return &d, nil
}

func scanLiteVersion(row scannable) (*model.Version, error) {
	var v model.Version
	err := row.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.IsLatest, &v.Status,
		&v.StorageRef, &v.CreatedBy, &v.Notes, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanLiteField(row scannable) (*model.ExtractedField, error) {
	var f model.ExtractedField
	var corrected, box sql.NullString
	err := row.Scan(&f.ID, &f.Key, &f.DocumentID, &f.VersionID, &f.Name, &f.Category, &f.Section,
		&f.Page, &f.FieldValue, &corrected, &f.ConfidenceScore, &f.HighlightedText, &box, &f.ExtractedAt)
	if err != nil {
		return nil, err
	}
	f.CorrectedValue = stringPtr(corrected)
	if box.Valid {
		if f.BoundingBox, err = decodeBox([]byte(box.String)); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY uploaded_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("sqlite: list documents", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanLiteDocument(rows)
		if err != nil {
			return nil, classify("sqlite: scan document", err)
		}
		docs = append(docs, *d)
	}
	return docs, classify("sqlite: iterate documents", rows.Err())
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanLiteDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("document", id)
	}
	if err != nil {
		return nil, classify("sqlite: get document", err)
	}
	return d, nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, documentID string) ([]model.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = ? ORDER BY version_number DESC`,
		documentID,
	)
	if err != nil {
		return nil, classify("sqlite: list versions", err)
	}
	defer rows.Close()

	var versions []model.Version
	for rows.Next() {
		v, err := scanLiteVersion(rows)
		if err != nil {
			return nil, classify("sqlite: scan version", err)
		}
		versions = append(versions, *v)
	}
	return versions, classify("sqlite: iterate versions", rows.Err())
}

func latestVersion(ctx context.Context, q queryer, documentID string) (*model.Version, error) {
	v, err := scanLiteVersion(q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = ? AND is_latest = 1 LIMIT 1`,
		documentID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("latest version", documentID)
	}
	if err != nil {
		return nil, classify("sqlite: latest version", err)
	}
	return v, nil
}

func (s *SQLiteStore) GetLatestVersion(ctx context.Context, documentID string) (*model.Version, error) {
	return latestVersion(ctx, s.db, documentID)
}

func (s *SQLiteStore) GetVersionByNumber(ctx context.Context, documentID string, number int) (*model.Version, error) {
	v, err := scanLiteVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = ? AND version_number = ?`,
		documentID, number,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("version", fmt.Sprintf("%s v%d", documentID, number))
	}
	if err != nil {
		return nil, classify("sqlite: get version", err)
	}
	return v, nil
}

func (s *SQLiteStore) ListFields(ctx context.Context, versionID string) ([]model.ExtractedField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fieldColumns+` FROM extracted_fields WHERE version_id = ? ORDER BY attribute_key`,
		versionID,
	)
	if err != nil {
		return nil, classify("sqlite: list fields", err)
	}
	defer rows.Close()

	var fields []model.ExtractedField
	for rows.Next() {
		f, err := scanLiteField(rows)
		if err != nil {
			return nil, classify("sqlite: scan field", err)
		}
		fields = append(fields, *f)
	}
	return fields, classify("sqlite: iterate fields", rows.Err())
}

func (s *SQLiteStore) FieldHistory(ctx context.Context, documentID string, upTo int) ([]model.FieldSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ef.attribute_key, dv.version_number, ef.field_value, ef.corrected_value
		FROM extracted_fields ef
		JOIN document_versions dv ON dv.id = ef.version_id
		WHERE ef.document_id = ? AND dv.version_number <= ?
		ORDER BY ef.attribute_key, dv.version_number`,
		documentID, upTo,
	)
	if err != nil {
		return nil, classify("sqlite: field history", err)
	}
	defer rows.Close()

	var snaps []model.FieldSnapshot
	for rows.Next() {
		var sn model.FieldSnapshot
		var corrected sql.NullString
		if err := rows.Scan(&sn.Key, &sn.VersionNumber, &sn.FieldValue, &corrected); err != nil {
			return nil, classify("sqlite: scan field history", err)
		}
		sn.CorrectedValue = stringPtr(corrected)
		snaps = append(snaps, sn)
	}
	return snaps, classify("sqlite: iterate field history", rows.Err())
}

// InTx runs fn inside an IMMEDIATE transaction, which holds the database
// write lock for its whole duration.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("sqlite: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&liteTx{tx: tx}); err != nil {
		return classify("sqlite: review tx", err)
	}
	return classify("sqlite: commit tx", tx.Commit())
}

func (s *SQLiteStore) GetReviewSession(ctx context.Context, id string) (*model.ReviewSession, error) {
	var rs model.ReviewSession
	var status string
	var completed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM review_sessions WHERE review_id = ?`, id,
	).Scan(&rs.ID, &rs.DocumentID, &rs.TargetVersionID, &rs.Reviewer, &status, &rs.CreatedAt, &rs.UpdatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("review session", id)
	}
	if err != nil {
		return nil, classify("sqlite: get review session", err)
	}
	rs.Status = model.SessionStatus(status)
	if completed.Valid {
		t := completed.Time
		rs.CompletedAt = &t
	}
	return &rs, nil
}

func (s *SQLiteStore) ListReviewedFields(ctx context.Context, documentID string) ([]model.ReviewedField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewedColumns+` FROM reviewed_fields WHERE document_id = ? ORDER BY rowid`,
		documentID,
	)
	if err != nil {
		return nil, classify("sqlite: list reviewed fields", err)
	}
	defer rows.Close()

	var out []model.ReviewedField
	for rows.Next() {
		var rf model.ReviewedField
		if err := rows.Scan(&rf.ID, &rf.ReviewID, &rf.DocumentID, &rf.TargetVersionID, &rf.Key,
			&rf.OriginalValue, &rf.OldCorrectedValue, &rf.NewCorrectedValue, &rf.ReviewedBy, &rf.ReviewedAt); err != nil {
			return nil, classify("sqlite: scan reviewed field", err)
		}
		out = append(out, rf)
	}
	return out, classify("sqlite: iterate reviewed fields", rows.Err())
}

func (s *SQLiteStore) CountReviewSessions(ctx context.Context, since time.Time) (SessionCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM review_sessions WHERE created_at >= ? GROUP BY status`,
		since.UTC(),
	)
	if err != nil {
		return nil, classify("sqlite: count review sessions", err)
	}
	defer rows.Close()

	counts := SessionCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify("sqlite: scan session count", err)
		}
		counts[model.SessionStatus(status)] = n
	}
	return counts, classify("sqlite: iterate session counts", rows.Err())
}

func (s *SQLiteStore) InsertPostbackLog(ctx context.Context, l *model.PostbackLog) error {
	var payload sql.NullString
	if len(l.Payload) > 0 {
		payload = sql.NullString{String: string(l.Payload), Valid: true}
	}
	var status sql.NullInt64
	if l.StatusCode != nil {
		status = sql.NullInt64{Int64: int64(*l.StatusCode), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO postback_logs (`+postbackColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.DocumentID, l.VersionID, l.ReviewID, l.Target, l.Endpoint, payload, status,
		l.ResponseBody, l.Success, l.Skipped, l.Attempts, l.Error, l.CreatedAt.UTC(),
	)
	return classify("sqlite: insert postback log", err)
}

func (s *SQLiteStore) ListPostbackLogs(ctx context.Context, filter PostbackFilter) ([]model.PostbackLog, error) {
	query := `SELECT ` + postbackColumns + ` FROM postback_logs WHERE 1=1`
	var args []any

	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("sqlite: list postback logs", err)
	}
	defer rows.Close()

	var logs []model.PostbackLog
	for rows.Next() {
		var l model.PostbackLog
		var payload sql.NullString
		var status sql.NullInt64
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.VersionID, &l.ReviewID, &l.Target, &l.Endpoint,
			&payload, &status, &l.ResponseBody, &l.Success, &l.Skipped, &l.Attempts, &l.Error, &l.CreatedAt); err != nil {
			return nil, classify("sqlite: scan postback log", err)
		}
		if payload.Valid {
			l.Payload = []byte(payload.String)
		}
		if status.Valid {
			code := int(status.Int64)
			l.StatusCode = &code
		}
		logs = append(logs, l)
	}
	return logs, classify("sqlite: iterate postback logs", rows.Err())
}

// ImportDocument writes a document, its versions, and its fields in one
// transaction.
func (s *SQLiteStore) ImportDocument(ctx context.Context, b DocumentBundle) error {
	doc := summarize(b)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("sqlite: begin import", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, doc.ID).Scan(&exists); err != nil {
		return classify("sqlite: check document", err)
	}
	if exists > 0 {
		return apperr.Invalid("document", "already exists: "+doc.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, string(doc.Status), doc.CurrentVersionID, doc.CurrentVersionNumber,
		doc.StorageRef, doc.AttributeCount, doc.OverallConfidence, doc.ReviewedBy, importTime(doc.UploadedAt),
	); err != nil {
		return classify("sqlite: insert document", err)
	}

	for _, v := range b.Versions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, doc.ID, v.VersionNumber, v.IsLatest, v.Status, v.StorageRef, v.CreatedBy, v.Notes, importTime(v.CreatedAt),
		); err != nil {
			return classify("sqlite: insert version", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO extracted_fields (`+fieldColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return classify("sqlite: prepare field insert", err)
	}
	defer stmt.Close()

	for _, f := range b.Fields {
		box, err := encodeBox(f.BoundingBox)
		if err != nil {
			return err
		}
		var boxText sql.NullString
		if box != nil {
			boxText = sql.NullString{String: string(box), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			f.ID, f.Key, doc.ID, f.VersionID, f.Name, f.Category, f.Section, f.Page,
			f.FieldValue, nullString(f.CorrectedValue), f.ConfidenceScore, f.HighlightedText, boxText, importTime(f.ExtractedAt),
		); err != nil {
			return classify("sqlite: insert field", err)
		}
	}

	return classify("sqlite: commit import", tx.Commit())
}

// liteTx implements Tx on a database/sql transaction.
type liteTx struct {
	tx *sql.Tx
}

func (t *liteTx) LockDocument(ctx context.Context, documentID string) error {
	// The IMMEDIATE transaction already holds the write lock; this only
	// checks existence.
	var id string
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id = ?`, documentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("document", documentID)
	}
	return classify("sqlite: lock document", err)
}

func (t *liteTx) LatestVersion(ctx context.Context, documentID string) (*model.Version, error) {
	return latestVersion(ctx, t.tx, documentID)
}

func (t *liteTx) CreateReviewSession(ctx context.Context, rs *model.ReviewSession) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO review_sessions (review_id, document_id, target_version_id, reviewer, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rs.ID, rs.DocumentID, rs.TargetVersionID, rs.Reviewer, string(rs.Status), rs.CreatedAt.UTC(), rs.UpdatedAt.UTC(),
	)
	return classify("sqlite: create review session", err)
}

func (t *liteTx) LockField(ctx context.Context, versionID, key string) (*model.ExtractedField, error) {
	f, err := scanLiteField(t.tx.QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM extracted_fields WHERE version_id = ? AND attribute_key = ?`,
		versionID, key,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("sqlite: lock field", err)
	}
	return f, nil
}

func (t *liteTx) SetCorrectedValue(ctx context.Context, rowID string, value *string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE extracted_fields SET corrected_value = ? WHERE row_id = ?`, nullString(value), rowID)
	if err != nil {
		return classify("sqlite: set corrected value", err)
	}
	return checkRowsAffected(res, "field", rowID)
}

func (t *liteTx) InsertReviewedField(ctx context.Context, rf *model.ReviewedField) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO reviewed_fields (`+reviewedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rf.ID, rf.ReviewID, rf.DocumentID, rf.TargetVersionID, rf.Key,
		rf.OriginalValue, rf.OldCorrectedValue, rf.NewCorrectedValue, rf.ReviewedBy, rf.ReviewedAt.UTC(),
	)
	return classify("sqlite: insert reviewed field", err)
}

func (t *liteTx) CompleteReviewSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE review_sessions SET status = ?, completed_at = ?, updated_at = ? WHERE review_id = ?`,
		string(model.SessionCompleted), at.UTC(), at.UTC(), sessionID,
	)
	if err != nil {
		return classify("sqlite: complete review session", err)
	}
	return checkRowsAffected(res, "review session", sessionID)
}

func (t *liteTx) MarkDocumentReviewed(ctx context.Context, documentID string, status model.DocumentStatus, reviewer string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, reviewed_by = ? WHERE id = ?`,
		string(status), reviewer, documentID,
	)
	if err != nil {
		return classify("sqlite: mark document reviewed", err)
	}
	return checkRowsAffected(res, "document", documentID)
}
