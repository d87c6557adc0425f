// Package memory implements repository.DocumentRepository on go-memdb. It backs
// tests and single-process deployments without a database.
package memory

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const tblDocuments = "documents"

// row is the stored shape. Nested metadata fields are lifted so they can be indexed.
type row struct {
	ID         string
	UploadedBy string
	PropertyID string
	Record     *model.DocumentRecord
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblDocuments: {
			Name: tblDocuments,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"uploaded_by": {
					Name:         "uploaded_by",
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "UploadedBy"},
				},
				"property_id": {
					Name:         "property_id",
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "PropertyID"},
				},
			},
		},
	},
}

// DocumentMemory is an in-memory DocumentRepository.
type DocumentMemory struct {
	db *memdb.MemDB
}

// New returns an empty repository.
func New() (*DocumentMemory, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}
	return &DocumentMemory{db: db}, nil
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

func newRow(rec *model.DocumentRecord) *row {
	c := rec.Clone()
	return &row{
		ID:         c.ID,
		UploadedBy: c.Metadata.UploadedBy,
		PropertyID: c.Metadata.PropertyID,
		Record:     c,
	}
}

// Create inserts rec.
func (d *DocumentMemory) Create(_ context.Context, rec *model.DocumentRecord) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblDocuments, "id", rec.ID)
	if err != nil {
		return fmt.Errorf("find document by id: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%s: %w", rec.ID, repository.ErrAlreadyExists)
	}
	if err := txn.Insert(tblDocuments, newRow(rec)); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	txn.Commit()
	return nil
}

// FindByID returns a copy of the record with id.
func (d *DocumentMemory) FindByID(_ context.Context, id string) (*model.DocumentRecord, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id)
	if err != nil {
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, repository.ErrNotFound)
	}
	return raw.(*row).Record.Clone(), nil
}

// Update replaces the stored record inside one write transaction.
func (d *DocumentMemory) Update(_ context.Context, rec *model.DocumentRecord) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", rec.ID)
	if err != nil {
		return fmt.Errorf("find document by id: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", rec.ID, repository.ErrNotFound)
	}
	if err := repository.CheckAppend(raw.(*row).Record, rec); err != nil {
		return fmt.Errorf("%s: %w", rec.ID, err)
	}
	if err := txn.Insert(tblDocuments, newRow(rec)); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	txn.Commit()
	return nil
}

// Query narrows by the most selective indexed field, then applies the rest of filter.
func (d *DocumentMemory) Query(_ context.Context, filter model.DocumentFilter) ([]*model.DocumentRecord, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var (
		iter memdb.ResultIterator
		err  error
	)
	switch {
	case filter.PropertyID != "":
		iter, err = txn.Get(tblDocuments, "property_id", filter.PropertyID)
	case filter.UploadedBy != "":
		iter, err = txn.Get(tblDocuments, "uploaded_by", filter.UploadedBy)
	default:
		iter, err = txn.Get(tblDocuments, "id")
	}
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	var out []*model.DocumentRecord
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		rec := raw.(*row).Record
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}
