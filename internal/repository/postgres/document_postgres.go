package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const selectColumns = `id, type, status, current_version, metadata, versions, created_at, updated_at`

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// Metadata and versions are stored as JSONB; the fields used for filtering are
// duplicated into plain columns so they can be indexed.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row.
func (r *DocumentPostgres) Create(ctx context.Context, rec *model.DocumentRecord) error {
	const q = `
		INSERT INTO documents (id, type, property_id, uploaded_by, access_level, status,
			current_version, metadata, versions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	meta, versions, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		rec.ID,
		string(rec.Type),
		nullable(rec.Metadata.PropertyID),
		rec.Metadata.UploadedBy,
		string(rec.Metadata.AccessLevel),
		string(rec.Status),
		rec.CurrentVersion,
		meta,
		versions,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", rec.ID, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	q := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return rec, nil
}

// Update replaces a row after locking it and checking the version history only grows.
func (r *DocumentPostgres) Update(ctx context.Context, rec *model.DocumentRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	stored, err := scanRecord(tx.QueryRowContext(ctx, q, rec.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", rec.ID, repository.ErrNotFound)
		}
		return fmt.Errorf("lock document: %w", err)
	}
	if err = repository.CheckAppend(stored, rec); err != nil {
		return fmt.Errorf("%s: %w", rec.ID, err)
	}

	meta, versions, err := encode(rec)
	if err != nil {
		return err
	}
	const qUpdate = `
		UPDATE documents
		SET type = $2, property_id = $3, uploaded_by = $4, access_level = $5, status = $6,
			current_version = $7, metadata = $8, versions = $9, updated_at = $10
		WHERE id = $1
	`
	if _, err = tx.ExecContext(ctx, qUpdate,
		rec.ID,
		string(rec.Type),
		nullable(rec.Metadata.PropertyID),
		rec.Metadata.UploadedBy,
		string(rec.Metadata.AccessLevel),
		string(rec.Status),
		rec.CurrentVersion,
		meta,
		versions,
		rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query pushes the indexed equality and range criteria into SQL and applies the
// remaining ones (tag, free text, current MIME type) to the decoded rows.
func (r *DocumentPostgres) Query(ctx context.Context, filter model.DocumentFilter) ([]*model.DocumentRecord, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.PropertyID != "" {
		add("property_id = $%d", filter.PropertyID)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.AccessLevel != "" {
		add("access_level = $%d", string(filter.AccessLevel))
	}
	if filter.UploadedBy != "" {
		add("uploaded_by = $%d", filter.UploadedBy)
	}
	if !filter.CreatedFrom.IsZero() {
		add("created_at >= $%d", filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		add("created_at <= $%d", filter.CreatedTo)
	}

	q := `SELECT ` + selectColumns + ` FROM documents`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make([]*model.DocumentRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.DocumentRecord, error) {
	var (
		rec      model.DocumentRecord
		docType  string
		status   string
		meta     []byte
		versions []byte
	)
	if err := s.Scan(
		&rec.ID,
		&docType,
		&status,
		&rec.CurrentVersion,
		&meta,
		&versions,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Type = model.DocumentType(docType)
	rec.Status = model.Status(status)
	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(versions, &rec.Versions); err != nil {
		return nil, fmt.Errorf("decode versions of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func encode(rec *model.DocumentRecord) (meta, versions string, err error) {
	m, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", "", fmt.Errorf("encode metadata: %w", err)
	}
	v, err := json.Marshal(rec.Versions)
	if err != nil {
		return "", "", fmt.Errorf("encode versions: %w", err)
	}
	return string(m), string(v), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
