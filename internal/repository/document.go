package repository

import (
	"context"

	"docvault/internal/model"
)

// DocumentRepository persists document records. It holds no business logic and
// performs no access checks; every returned record is a copy the caller owns.
type DocumentRepository interface {
	// Create stores a new record. It fails with ErrAlreadyExists for a taken id.
	Create(ctx context.Context, rec *model.DocumentRecord) error

	// FindByID returns the record with id or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.DocumentRecord, error)

	// Update replaces a stored record. Versions are append-only, so the new
	// CurrentVersion must equal the stored one or exceed it by exactly one;
	// anything else fails with ErrConflict.
	Update(ctx context.Context, rec *model.DocumentRecord) error

	// Query returns every record matching filter, ignoring Limit and Offset.
	// Order is unspecified.
	Query(ctx context.Context, filter model.DocumentFilter) ([]*model.DocumentRecord, error)
}

// CheckAppend reports ErrConflict unless next is a valid successor of stored.
func CheckAppend(stored, next *model.DocumentRecord) error {
	if next.CurrentVersion != stored.CurrentVersion && next.CurrentVersion != stored.CurrentVersion+1 {
		return ErrConflict
	}
	if len(next.Versions) != next.CurrentVersion || len(next.Versions) < len(stored.Versions) {
		return ErrConflict
	}
	for i := range stored.Versions {
		if next.Versions[i].Version != stored.Versions[i].Version ||
			next.Versions[i].StorageKey != stored.Versions[i].StorageKey {
			return ErrConflict
		}
	}
	return nil
}
