package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/db"
	"github.com/sells-group/contract-review/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id                     TEXT PRIMARY KEY,
	title                  TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'Pending',
	current_version_id     TEXT NOT NULL DEFAULT '',
	current_version_number INTEGER NOT NULL DEFAULT 0,
	storage_ref            TEXT NOT NULL DEFAULT '',
	attribute_count        INTEGER NOT NULL DEFAULT 0,
	overall_confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviewed_by            TEXT NOT NULL DEFAULT '',
	uploaded_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_versions (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	version_number INTEGER NOT NULL CHECK (version_number >= 1),
	is_latest      BOOLEAN NOT NULL DEFAULT false,
	status         TEXT NOT NULL DEFAULT '',
	storage_ref    TEXT NOT NULL DEFAULT '',
	created_by     TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, version_number)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_one_latest ON document_versions(document_id) WHERE is_latest;

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
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	highlighted_text TEXT NOT NULL DEFAULT '',
	bounding_box     JSONB,
	extracted_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (attribute_key, version_id)
);

CREATE INDEX IF NOT EXISTS idx_fields_document_key ON extracted_fields(document_id, attribute_key);

CREATE TABLE IF NOT EXISTS review_sessions (
	review_id         TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL REFERENCES documents(id),
	target_version_id TEXT NOT NULL REFERENCES document_versions(id),
	reviewer          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'IN_PROGRESS',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_document ON review_sessions(document_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON review_sessions(created_at);

CREATE TABLE IF NOT EXISTS reviewed_fields (
	id                  TEXT PRIMARY KEY,
	seq                 BIGSERIAL,
	review_id           TEXT NOT NULL REFERENCES review_sessions(review_id),
	document_id         TEXT NOT NULL REFERENCES documents(id),
	target_version_id   TEXT NOT NULL REFERENCES document_versions(id),
	attribute_key       TEXT NOT NULL,
	original_value      TEXT NOT NULL DEFAULT '',
	old_corrected_value TEXT NOT NULL DEFAULT '',
	new_corrected_value TEXT NOT NULL DEFAULT '',
	reviewed_by         TEXT NOT NULL,
	reviewed_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reviewed_fields_document ON reviewed_fields(document_id, seq);

CREATE TABLE IF NOT EXISTS postback_logs (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	version_id    TEXT NOT NULL,
	review_id     TEXT NOT NULL DEFAULT '',
	target        TEXT NOT NULL,
	endpoint      TEXT NOT NULL DEFAULT '',
	payload       JSONB,
	status_code   INTEGER,
	response_body TEXT NOT NULL DEFAULT '',
	success       BOOLEAN NOT NULL DEFAULT false,
	skipped       BOOLEAN NOT NULL DEFAULT false,
	attempts      INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_postback_logs_document ON postback_logs(document_id);
CREATE INDEX IF NOT EXISTS idx_postback_logs_created ON postback_logs(created_at);
`

const (
	documentColumns = `id, title, status, current_version_id, current_version_number, storage_ref, attribute_count, overall_confidence, reviewed_by, uploaded_at`
	versionColumns  = `id, document_id, version_number, is_latest, status, storage_ref, created_by, notes, created_at`
	fieldColumns    = `row_id, attribute_key, document_id, version_id, field_name, category, section, page_number, field_value, corrected_value, confidence_score, highlighted_text, bounding_box, extracted_at`
	sessionColumns  = `review_id, document_id, target_version_id, reviewer, status, created_at, updated_at, completed_at`
	reviewedColumns = `id, review_id, document_id, target_version_id, attribute_key, original_value, old_corrected_value, new_corrected_value, reviewed_by, reviewed_at`
	postbackColumns = `id, document_id, version_id, review_id, target, endpoint, payload, status_code, response_body, success, skipped, attempts, error, created_at`
)

var fieldCopyColumns = []string{
	"row_id", "attribute_key", "document_id", "version_id", "field_name", "category", "section",
	"page_number", "field_value", "corrected_value", "confidence_score", "highlighted_text",
	"bounding_box", "extracted_at",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func scanPgDocument(row pgx.Row) (*model.Document, error) {
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

func scanPgVersion(row pgx.Row) (*model.Version, error) {
	var v model.Version
	err := row.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.IsLatest, &v.Status,
		&v.StorageRef, &v.CreatedBy, &v.Notes, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanPgField(row pgx.Row) (*model.ExtractedField, error) {
	var f model.ExtractedField
	var box []byte
	err := row.Scan(&f.ID, &f.Key, &f.DocumentID, &f.VersionID, &f.Name, &f.Category, &f.Section,
		&f.Page, &f.FieldValue, &f.CorrectedValue, &f.ConfidenceScore, &f.HighlightedText, &box, &f.ExtractedAt)
	if err != nil {
		return nil, err
	}
	if f.BoundingBox, err = decodeBox(box); err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeBox(raw []byte) (*model.BoundingBox, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var b model.BoundingBox
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, eris.Wrap(err, "unmarshal bounding box")
	}
	return &b, nil
}

func encodeBox(b *model.BoundingBox) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(b)
	return raw, eris.Wrap(err, "marshal bounding box")
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY uploaded_at DESC, id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("postgres: list documents", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanPgDocument(rows)
		if err != nil {
			return nil, classify("postgres: scan document", err)
		}
		docs = append(docs, *d)
	}
	return docs, classify("postgres: iterate documents", rows.Err())
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanPgDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("document", id)
	}
	if err != nil {
		return nil, classify("postgres: get document", err)
	}
	return d, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, documentID string) ([]model.Version, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 ORDER BY version_number DESC`,
		documentID,
	)
	if err != nil {
		return nil, classify("postgres: list versions", err)
	}
	defer rows.Close()

	var versions []model.Version
	for rows.Next() {
		v, err := scanPgVersion(rows)
		if err != nil {
			return nil, classify("postgres: scan version", err)
		}
		versions = append(versions, *v)
	}
	return versions, classify("postgres: iterate versions", rows.Err())
}

func (s *PostgresStore) GetLatestVersion(ctx context.Context, documentID string) (*model.Version, error) {
	v, err := scanPgVersion(s.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 AND is_latest LIMIT 1`,
		documentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("latest version", documentID)
	}
	if err != nil {
		return nil, classify("postgres: get latest version", err)
	}
	return v, nil
}

func (s *PostgresStore) GetVersionByNumber(ctx context.Context, documentID string, number int) (*model.Version, error) {
	v, err := scanPgVersion(s.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 AND version_number = $2`,
		documentID, number,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("version", fmt.Sprintf("%s v%d", documentID, number))
	}
	if err != nil {
		return nil, classify("postgres: get version", err)
	}
	return v, nil
}

func (s *PostgresStore) ListFields(ctx context.Context, versionID string) ([]model.ExtractedField, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fieldColumns+` FROM extracted_fields WHERE version_id = $1 ORDER BY attribute_key`,
		versionID,
	)
	if err != nil {
		return nil, classify("postgres: list fields", err)
	}
	defer rows.Close()

	var fields []model.ExtractedField
	for rows.Next() {
		f, err := scanPgField(rows)
		if err != nil {
			return nil, classify("postgres: scan field", err)
		}
		fields = append(fields, *f)
	}
	return fields, classify("postgres: iterate fields", rows.Err())
}

func (s *PostgresStore) FieldHistory(ctx context.Context, documentID string, upTo int) ([]model.FieldSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ef.attribute_key, dv.version_number, ef.field_value, ef.corrected_value
		FROM extracted_fields ef
		JOIN document_versions dv ON dv.id = ef.version_id
		WHERE ef.document_id = $1 AND dv.version_number <= $2
		ORDER BY ef.attribute_key, dv.version_number`,
		documentID, upTo,
	)
	if err != nil {
		return nil, classify("postgres: field history", err)
	}
	defer rows.Close()

	var snaps []model.FieldSnapshot
	for rows.Next() {
		var sn model.FieldSnapshot
		if err := rows.Scan(&sn.Key, &sn.VersionNumber, &sn.FieldValue, &sn.CorrectedValue); err != nil {
			return nil, classify("postgres: scan field history", err)
		}
		snaps = append(snaps, sn)
	}
	return snaps, classify("postgres: iterate field history", rows.Err())
}

// InTx runs fn inside a read-committed transaction. Row locks taken by the
// Tx methods serialize concurrent sessions on the same document.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	err := db.WithTx(ctx, s.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
	return classify("postgres: review tx", err)
}

func (s *PostgresStore) GetReviewSession(ctx context.Context, id string) (*model.ReviewSession, error) {
	var rs model.ReviewSession
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM review_sessions WHERE review_id = $1`, id,
	).Scan(&rs.ID, &rs.DocumentID, &rs.TargetVersionID, &rs.Reviewer, &status, &rs.CreatedAt, &rs.UpdatedAt, &rs.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("review session", id)
	}
	if err != nil {
		return nil, classify("postgres: get review session", err)
	}
	rs.Status = model.SessionStatus(status)
	return &rs, nil
}

func (s *PostgresStore) ListReviewedFields(ctx context.Context, documentID string) ([]model.ReviewedField, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewedColumns+` FROM reviewed_fields WHERE document_id = $1 ORDER BY seq`,
		documentID,
	)
	if err != nil {
		return nil, classify("postgres: list reviewed fields", err)
	}
	defer rows.Close()

	var out []model.ReviewedField
	for rows.Next() {
		var rf model.ReviewedField
		if err := rows.Scan(&rf.ID, &rf.ReviewID, &rf.DocumentID, &rf.TargetVersionID, &rf.Key,
			&rf.OriginalValue, &rf.OldCorrectedValue, &rf.NewCorrectedValue, &rf.ReviewedBy, &rf.ReviewedAt); err != nil {
			return nil, classify("postgres: scan reviewed field", err)
		}
		out = append(out, rf)
	}
	return out, classify("postgres: iterate reviewed fields", rows.Err())
}

func (s *PostgresStore) CountReviewSessions(ctx context.Context, since time.Time) (SessionCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM review_sessions WHERE created_at >= $1 GROUP BY status`,
		since,
	)
	if err != nil {
		return nil, classify("postgres: count review sessions", err)
	}
	defer rows.Close()

	counts := SessionCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify("postgres: scan session count", err)
		}
		counts[model.SessionStatus(status)] = n
	}
	return counts, classify("postgres: iterate session counts", rows.Err())
}

func (s *PostgresStore) InsertPostbackLog(ctx context.Context, l *model.PostbackLog) error {
	var payload []byte
	if len(l.Payload) > 0 {
		payload = l.Payload
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO postback_logs (`+postbackColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		l.ID, l.DocumentID, l.VersionID, l.ReviewID, l.Target, l.Endpoint, payload, l.StatusCode,
		l.ResponseBody, l.Success, l.Skipped, l.Attempts, l.Error, l.CreatedAt,
	)
	return classify("postgres: insert postback log", err)
}

func (s *PostgresStore) ListPostbackLogs(ctx context.Context, filter PostbackFilter) ([]model.PostbackLog, error) {
	query := `SELECT ` + postbackColumns + ` FROM postback_logs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("postgres: list postback logs", err)
	}
	defer rows.Close()

	var logs []model.PostbackLog
	for rows.Next() {
		var l model.PostbackLog
		var payload []byte
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.VersionID, &l.ReviewID, &l.Target, &l.Endpoint,
			&payload, &l.StatusCode, &l.ResponseBody, &l.Success, &l.Skipped, &l.Attempts, &l.Error, &l.CreatedAt); err != nil {
			return nil, classify("postgres: scan postback log", err)
		}
		if len(payload) > 0 {
			l.Payload = payload
		}
		logs = append(logs, l)
	}
	return logs, classify("postgres: iterate postback logs", rows.Err())
}

// ImportDocument writes a document, its versions, and its fields in one
// transaction. Fields are bulk loaded with COPY.
func (s *PostgresStore) ImportDocument(ctx context.Context, b DocumentBundle) error {
	doc := summarize(b)
	rows := make([][]any, 0, len(b.Fields))
	for _, f := range b.Fields {
		box, err := encodeBox(f.BoundingBox)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			f.ID, f.Key, doc.ID, f.VersionID, f.Name, f.Category, f.Section, f.Page,
			f.FieldValue, f.CorrectedValue, f.ConfidenceScore, f.HighlightedText, box, importTime(f.ExtractedAt),
		})
	}

	err := db.WithTx(ctx, s.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
			return classify("postgres: check document", err)
		}
		if exists {
			return apperr.Invalid("document", "already exists: "+doc.ID)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			doc.ID, doc.Title, string(doc.Status), doc.CurrentVersionID, doc.CurrentVersionNumber,
			doc.StorageRef, doc.AttributeCount, doc.OverallConfidence, doc.ReviewedBy, importTime(doc.UploadedAt),
		); err != nil {
			return classify("postgres: insert document", err)
		}

		for _, v := range b.Versions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO document_versions (`+versionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				v.ID, doc.ID, v.VersionNumber, v.IsLatest, v.Status, v.StorageRef, v.CreatedBy, v.Notes, importTime(v.CreatedAt),
			); err != nil {
				return classify("postgres: insert version", err)
			}
		}

		if _, err := db.CopyFrom(ctx, tx, "extracted_fields", fieldCopyColumns, rows); err != nil {
			return classify("postgres: copy fields", err)
		}
		return nil
	})
	return classify("postgres: import document", err)
}

func importTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// pgTx implements Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockDocument(ctx context.Context, documentID string) error {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM documents WHERE id = $1 FOR UPDATE`, documentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("document", documentID)
	}
	return classify("postgres: lock document", err)
}

func (t *pgTx) LatestVersion(ctx context.Context, documentID string) (*model.Version, error) {
	v, err := scanPgVersion(t.tx.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 AND is_latest LIMIT 1 FOR SHARE`,
		documentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("latest version", documentID)
	}
	if err != nil {
		return nil, classify("postgres: latest version", err)
	}
	return v, nil
}

func (t *pgTx) CreateReviewSession(ctx context.Context, rs *model.ReviewSession) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO review_sessions (review_id, document_id, target_version_id, reviewer, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rs.ID, rs.DocumentID, rs.TargetVersionID, rs.Reviewer, string(rs.Status), rs.CreatedAt, rs.UpdatedAt,
	)
	return classify("postgres: create review session", err)
}

func (t *pgTx) LockField(ctx context.Context, versionID, key string) (*model.ExtractedField, error) {
	f, err := scanPgField(t.tx.QueryRow(ctx,
		`SELECT `+fieldColumns+` FROM extracted_fields WHERE version_id = $1 AND attribute_key = $2 FOR UPDATE`,
		versionID, key,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("postgres: lock field", err)
	}
	return f, nil
}

func (t *pgTx) SetCorrectedValue(ctx context.Context, rowID string, value *string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE extracted_fields SET corrected_value = $1 WHERE row_id = $2`, value, rowID)
	if err != nil {
		return classify("postgres: set corrected value", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("field", rowID)
	}
	return nil
}

func (t *pgTx) InsertReviewedField(ctx context.Context, rf *model.ReviewedField) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO reviewed_fields (`+reviewedColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rf.ID, rf.ReviewID, rf.DocumentID, rf.TargetVersionID, rf.Key,
		rf.OriginalValue, rf.OldCorrectedValue, rf.NewCorrectedValue, rf.ReviewedBy, rf.ReviewedAt,
	)
	return classify("postgres: insert reviewed field", err)
}

func (t *pgTx) CompleteReviewSession(ctx context.Context, sessionID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE review_sessions SET status = $1, completed_at = $2, updated_at = $2 WHERE review_id = $3`,
		string(model.SessionCompleted), at, sessionID,
	)
	if err != nil {
		return classify("postgres: complete review session", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("review session", sessionID)
	}
	return nil
}

func (t *pgTx) MarkDocumentReviewed(ctx context.Context, documentID string, status model.DocumentStatus, reviewer string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE documents SET status = $1, reviewed_by = $2 WHERE id = $3`,
		string(status), reviewer, documentID,
	)
	if err != nil {
		return classify("postgres: mark document reviewed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("document", documentID)
	}
	return nil
}
