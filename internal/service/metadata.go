package service

import (
	"context"
	"fmt"
	"strings"

	"docvault/internal/errs"
	"docvault/internal/model"
)

func (s *documentService) UpdateMetadata(ctx context.Context, id string, upd MetadataUpdate, ac model.AccessContext) (_ *model.DocumentRecord, err error) {
	const op = "service.UpdateMetadata"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	if err := requireCaller(op, ac); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errs.Invalid(op, "id", "document id is required")
	}
	if err := validateUpdate(op, id, upd); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: lock document %s: %w", op, id, err)
	}
	defer unlock()

	rec, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !canWrite(rec, ac) {
		return nil, s.forbidden(op, id, ac)
	}

	if upd.OwnerOverride != nil && *upd.OwnerOverride != rec.Metadata.UploadedBy {
		s.log.Warnw("document owner overridden",
			"document_id", id,
			"user_id", ac.UserID,
			"previous_owner", rec.Metadata.UploadedBy,
			"new_owner", *upd.OwnerOverride,
		)
	}
	rec.Metadata = applyUpdate(rec.Metadata, upd)
	rec.UpdatedAt = s.clock()

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("%s: save document %s: %w", op, id, err)
	}
	return rec, nil
}

func validateUpdate(op, id string, upd MetadataUpdate) error {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return errs.InvalidDocument(op, id, "title", fmt.Errorf("title cannot be empty"))
	}
	if upd.AccessLevel != nil && !upd.AccessLevel.Valid() {
		return errs.InvalidDocument(op, id, "access_level", fmt.Errorf("unknown access level %q", *upd.AccessLevel))
	}
	if upd.OwnerOverride != nil && strings.TrimSpace(*upd.OwnerOverride) == "" {
		return errs.InvalidDocument(op, id, "owner_override", fmt.Errorf("owner cannot be empty"))
	}
	return nil
}

// applyUpdate returns meta with the populated fields of upd merged in. Versions
// are not part of metadata and are never touched here.
func applyUpdate(meta model.DocumentMetadata, upd MetadataUpdate) model.DocumentMetadata {
	out := meta.Clone()
	if upd.PropertyID != nil {
		out.PropertyID = *upd.PropertyID
	}
	if upd.Title != nil {
		out.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		out.Description = *upd.Description
	}
	if upd.Tags != nil {
		out.Tags = model.NormalizeTags(*upd.Tags)
	}
	if upd.AccessLevel != nil {
		out.AccessLevel = *upd.AccessLevel
	}
	if upd.AllowedUserIDs != nil {
		out.AllowedUserIDs = append([]string(nil), (*upd.AllowedUserIDs)...)
	}
	if upd.AllowedRoles != nil {
		out.AllowedRoles = append([]string(nil), (*upd.AllowedRoles)...)
	}
	if len(upd.CustomFields) > 0 {
		if out.CustomFields == nil {
			out.CustomFields = make(map[string]string, len(upd.CustomFields))
		}
		for k, v := range upd.CustomFields {
			if v == "" {
				delete(out.CustomFields, k)
				continue
			}
			out.CustomFields[k] = v
		}
	}
	if upd.OwnerOverride != nil {
		out.UploadedBy = strings.TrimSpace(*upd.OwnerOverride)
	}
	return out
}
