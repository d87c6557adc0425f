package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"docvault/internal/access"
	"docvault/internal/errs"
	"docvault/internal/model"
)

func canRead(rec *model.DocumentRecord, ac model.AccessContext) bool {
	return access.CanRead(rec.Metadata, ac)
}

func canWrite(rec *model.DocumentRecord, ac model.AccessContext) bool {
	return access.CanWrite(rec.Metadata, ac)
}

func (s *documentService) GetDocument(ctx context.Context, id string, ac model.AccessContext) (_ *model.DocumentRecord, err error) {
	const op = "service.GetDocument"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	return s.readable(ctx, op, id, ac)
}

func (s *documentService) readable(ctx context.Context, op, id string, ac model.AccessContext) (*model.DocumentRecord, error) {
	if err := requireCaller(op, ac); err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !canRead(rec, ac) {
		return nil, s.forbidden(op, id, ac)
	}
	return rec, nil
}

func (s *documentService) ListDocuments(ctx context.Context, filter model.DocumentFilter, ac model.AccessContext) (_ *DocumentListResult, err error) {
	const op = "service.ListDocuments"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	if err := requireCaller(op, ac); err != nil {
		return nil, err
	}
	if err := validateFilter(op, &filter); err != nil {
		return nil, err
	}

	found, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: query documents: %w", op, err)
	}

	visible := make([]*model.DocumentRecord, 0, len(found))
	for _, rec := range found {
		if canRead(rec, ac) {
			visible = append(visible, rec)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	res := &DocumentListResult{Items: []*model.DocumentRecord{}, Total: len(visible)}
	if filter.Offset < len(visible) {
		last := min(filter.Offset+filter.Limit, len(visible))
		res.Items = visible[filter.Offset:last]
	}
	return res, nil
}

func validateFilter(op string, f *model.DocumentFilter) error {
	if f.Limit < 0 {
		return errs.Invalid(op, "limit", "limit cannot be negative")
	}
	if f.Offset < 0 {
		return errs.Invalid(op, "offset", "offset cannot be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	f.Limit = min(f.Limit, maxListLimit)
	if f.Type != "" && !f.Type.Valid() {
		return errs.Invalid(op, "type", fmt.Sprintf("unknown document type %q", f.Type))
	}
	if f.AccessLevel != "" && !f.AccessLevel.Valid() {
		return errs.Invalid(op, "access_level", fmt.Sprintf("unknown access level %q", f.AccessLevel))
	}
	if !f.CreatedFrom.IsZero() && !f.CreatedTo.IsZero() && f.CreatedFrom.After(f.CreatedTo) {
		return errs.Invalid(op, "created_from", "created_from is after created_to")
	}
	return nil
}

func (s *documentService) GetDownloadURL(ctx context.Context, id string, version *int, ac model.AccessContext) (_ *DownloadURL, err error) {
	const op = "service.GetDownloadURL"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	v, err := s.resolveVersion(ctx, op, id, version, ac)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, op, id, v.StorageKey, v.Version, "download")
}

func (s *documentService) GetThumbnailURL(ctx context.Context, id string, version *int, ac model.AccessContext) (_ *DownloadURL, err error) {
	const op = "service.GetThumbnailURL"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	v, err := s.resolveVersion(ctx, op, id, version, ac)
	if err != nil {
		return nil, err
	}
	if v.ThumbnailKey == "" {
		return nil, errs.NotFoundDocument(op, id, fmt.Errorf("version %d has no thumbnail", v.Version))
	}
	return s.sign(ctx, op, id, v.ThumbnailKey, v.Version, "thumbnail")
}

// resolveVersion loads a readable document and picks the requested version,
// the current one when version is nil.
func (s *documentService) resolveVersion(ctx context.Context, op, id string, version *int, ac model.AccessContext) (model.DocumentVersion, error) {
	if version != nil && *version < 1 {
		return model.DocumentVersion{}, errs.InvalidDocument(op, id, "version",
			fmt.Errorf("version must be a positive integer, got %d", *version))
	}
	rec, err := s.readable(ctx, op, id, ac)
	if err != nil {
		return model.DocumentVersion{}, err
	}
	n := rec.CurrentVersion
	if version != nil {
		n = *version
	}
	v, ok := rec.Version(n)
	if !ok {
		return model.DocumentVersion{}, errs.NotFoundDocument(op, id, fmt.Errorf("version %d not found", n))
	}
	return v, nil
}

func (s *documentService) sign(ctx context.Context, op, id, key string, version int, purpose string) (*DownloadURL, error) {
	ttl := s.cfg.DownloadURLTTL
	issued := s.clock()
	u, err := s.store.GetSignedURL(ctx, key, ttl, http.MethodGet)
	if err != nil {
		if !errors.Is(err, errs.InvalidRequest) {
			s.metrics.StorageFailure(op)
		}
		return nil, storageErr(op, id, key, err)
	}
	s.metrics.SignedURLIssued(purpose)
	return &DownloadURL{URL: u, ExpiresAt: issued.Add(ttl), Version: version}, nil
}
