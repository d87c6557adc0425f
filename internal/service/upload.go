package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"docvault/internal/errs"
	"docvault/internal/model"
	"docvault/internal/scan"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
)

const maxFileNameLen = 200

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// prepared is a validated file with everything computed that does not depend on
// the version number it will be stored under.
type prepared struct {
	name        string
	contentType string
	data        []byte
	checksum    string
	thumb       *thumbnail.Result
}

func (s *documentService) UploadDocuments(ctx context.Context, files []FileUpload, input MetadataInput, ac model.AccessContext) (_ []*model.DocumentRecord, err error) {
	const op = "service.UploadDocuments"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	if err := requireCaller(op, ac); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.Invalid(op, "files", "at least one file is required")
	}
	if err := validateInput(op, &input); err != nil {
		return nil, err
	}

	// Every file is checked before the first byte leaves the process.
	batch := make([]*prepared, len(files))
	for i, f := range files {
		p, err := s.prepare(ctx, op, "", f)
		if err != nil {
			return nil, err
		}
		batch[i] = p
	}

	out := make([]*model.DocumentRecord, 0, len(batch))
	for _, p := range batch {
		rec, err := s.createDocument(ctx, op, p, input, ac)
		if err != nil {
			if len(out) > 0 {
				s.log.Warnw("upload batch stopped part way",
					"op", op, "created", len(out), "requested", len(batch), "error", err)
			}
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *documentService) createDocument(ctx context.Context, op string, p *prepared, input MetadataInput, ac model.AccessContext) (*model.DocumentRecord, error) {
	id := s.newID()
	v, err := s.storeVersion(ctx, op, id, 1, p, ac)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = p.name
	}
	now := s.clock()
	rec := &model.DocumentRecord{
		ID:   id,
		Type: input.Type,
		Metadata: model.DocumentMetadata{
			PropertyID:     input.PropertyID,
			Title:          title,
			Description:    input.Description,
			Tags:           model.NormalizeTags(input.Tags),
			UploadedBy:     ac.UserID,
			AccessLevel:    input.AccessLevel,
			AllowedUserIDs: input.AllowedUserIDs,
			AllowedRoles:   input.AllowedRoles,
			CustomFields:   input.CustomFields,
		}.Clone(),
		Versions:       []model.DocumentVersion{v},
		CurrentVersion: 1,
		Status:         model.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		// The provider has no delete, so the object stays behind.
		s.log.Warnw("document record not saved, stored object is orphaned",
			"op", op, "document_id", id, "storage_key", v.StorageKey, "error", err)
		return nil, fmt.Errorf("%s: save document %s: %w", op, id, err)
	}

	s.metrics.DocumentUploaded(string(rec.Type), v.Size)
	s.log.Infow("document uploaded",
		"document_id", id, "user_id", ac.UserID, "size", v.Size, "mime_type", v.MimeType)
	return rec, nil
}

func (s *documentService) AddDocumentVersion(ctx context.Context, id string, file FileUpload, ac model.AccessContext) (_ *model.DocumentRecord, err error) {
	const op = "service.AddDocumentVersion"
	ctx, end := s.startSpan(ctx, op)
	defer end(&err)

	if err := requireCaller(op, ac); err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !canWrite(rec, ac) {
		return nil, s.forbidden(op, id, ac)
	}

	p, err := s.prepare(ctx, op, id, file)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: lock document %s: %w", op, id, err)
	}
	defer unlock()

	// Reload under the lock: another writer may have appended or changed access.
	rec, err = s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !canWrite(rec, ac) {
		return nil, s.forbidden(op, id, ac)
	}

	next := rec.CurrentVersion + 1
	v, err := s.storeVersion(ctx, op, id, next, p, ac)
	if err != nil {
		return nil, err
	}

	rec.Versions = append(rec.Versions, v)
	rec.CurrentVersion = next
	rec.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, rec); err != nil {
		s.log.Warnw("version not recorded, stored object is orphaned",
			"op", op, "document_id", id, "version", next, "storage_key", v.StorageKey, "error", err)
		return nil, fmt.Errorf("%s: save document %s: %w", op, id, err)
	}

	s.metrics.VersionAdded(v.Size)
	s.log.Infow("version added", "document_id", id, "version", next, "user_id", ac.UserID)
	return rec, nil
}

// storeVersion uploads the bytes (and thumbnail, if any) of p as version n of id.
// A failure of the main upload returns StorageFailure; thumbnail failures are swallowed.
func (s *documentService) storeVersion(ctx context.Context, op, id string, n int, p *prepared, ac model.AccessContext) (model.DocumentVersion, error) {
	key := StorageKey(id, n, p.name)
	res, err := s.store.UploadObject(ctx, key, p.data, p.contentType)
	if err != nil {
		s.metrics.StorageFailure(op)
		return model.DocumentVersion{}, storageErr(op, id, key, err)
	}
	if res.Checksum != "" && res.Checksum != p.checksum {
		s.metrics.StorageFailure(op)
		return model.DocumentVersion{}, storageErr(op, id, key,
			fmt.Errorf("checksum mismatch: computed %s, stored %s", p.checksum, res.Checksum))
	}

	v := model.DocumentVersion{
		Version:          n,
		StorageKey:       key,
		Checksum:         p.checksum,
		Size:             int64(len(p.data)),
		MimeType:         p.contentType,
		CreatedAt:        s.clock(),
		UploadedBy:       ac.UserID,
		OriginalFileName: p.name,
	}

	if p.thumb != nil {
		tkey := ThumbnailKey(id, n, p.name, p.thumb.Ext)
		if _, err := s.store.UploadObject(ctx, tkey, p.thumb.Data, p.thumb.ContentType); err != nil {
			s.thumbnailFailed(op, id, err)
		} else {
			v.ThumbnailKey = tkey
		}
	}
	return v, nil
}

// prepare validates f and computes its checksum and thumbnail. id is only used
// to annotate errors and may be empty.
func (s *documentService) prepare(ctx context.Context, op, id string, f FileUpload) (*prepared, error) {
	name := SanitizeFileName(f.FileName)
	if len(f.Data) == 0 {
		return nil, errs.InvalidDocument(op, id, "file", fmt.Errorf("%s is empty", name))
	}
	if s.cfg.MaxSizeBytes > 0 && int64(len(f.Data)) > s.cfg.MaxSizeBytes {
		return nil, errs.InvalidDocument(op, id, "file",
			fmt.Errorf("%s is %d bytes, limit is %d", name, len(f.Data), s.cfg.MaxSizeBytes))
	}

	ct := detectContentType(f.ContentType, f.Data)
	if !MIMEAllowed(ct, s.cfg.AllowedMIMETypes) {
		return nil, errs.InvalidDocument(op, id, "file", fmt.Errorf("file type %q is not allowed", ct))
	}

	if s.scanner != nil {
		if err := s.scanner.Scan(f.Data); err != nil {
			s.metrics.MaliciousRejected()
			s.log.Warnw("malicious upload rejected", "op", op, "document_id", id, "file_name", name, "error", err)
			if !errors.Is(err, scan.ErrMalicious) {
				err = fmt.Errorf("%w: %v", scan.ErrMalicious, err)
			}
			return nil, errs.InvalidDocument(op, id, "file", err)
		}
	}

	p := &prepared{
		name:        name,
		contentType: ct,
		data:        f.Data,
		checksum:    storage.Checksum(f.Data),
	}

	if s.thumbs != nil && strings.HasPrefix(ct, "image/") {
		res, err := s.thumbs.Thumbnail(ctx, f.Data, s.cfg.Thumbnail)
		if err != nil {
			s.thumbnailFailed(op, id, err)
		} else {
			p.thumb = &res
		}
	}
	return p, nil
}

func (s *documentService) thumbnailFailed(op, id string, err error) {
	s.metrics.ThumbnailFailure()
	s.log.Warnw("thumbnail skipped", "op", op, "document_id", id, "error", err)
}

func validateInput(op string, in *MetadataInput) error {
	if in.Type == "" {
		in.Type = model.TypeOther
	}
	if !in.Type.Valid() {
		return errs.Invalid(op, "type", fmt.Sprintf("unknown document type %q", in.Type))
	}
	if in.AccessLevel == "" {
		in.AccessLevel = model.AccessPrivate
	}
	if !in.AccessLevel.Valid() {
		return errs.Invalid(op, "access_level", fmt.Sprintf("unknown access level %q", in.AccessLevel))
	}
	return nil
}

func storageErr(op, id, key string, err error) error {
	if errors.Is(err, errs.StorageFailure) || errors.Is(err, errs.InvalidRequest) {
		var e *errs.Error
		if errors.As(err, &e) && e.DocumentID == "" {
			c := *e
			c.Op = op
			c.DocumentID = id
			return &c
		}
		return err
	}
	return &errs.Error{Kind: errs.StorageFailure, Op: op, DocumentID: id, Field: key, Err: err}
}

// StorageKey is the object key of version n of document id.
func StorageKey(id string, n int, fileName string) string {
	return fmt.Sprintf("documents/%s/v%d/%s", id, n, fileName)
}

// ThumbnailKey is the object key of the thumbnail of version n of document id.
func ThumbnailKey(id string, n int, fileName, ext string) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	if base == "" {
		base = fileName
	}
	return fmt.Sprintf("documents/%s/v%d/thumbnails/%s_thumb.%s", id, n, base, ext)
}

// SanitizeFileName reduces a client supplied name to a single safe path segment.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > maxFileNameLen {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:maxFileNameLen-len(ext)] + ext
	}
	return name
}

// MIMEAllowed reports whether ct matches one of patterns. A pattern is an exact
// type, "family/*" or "*/*".
func MIMEAllowed(ct string, patterns []string) bool {
	family, _, _ := strings.Cut(ct, "/")
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "*/*", p == ct:
			return true
		case strings.HasSuffix(p, "/*") && strings.TrimSuffix(p, "/*") == family:
			return true
		}
	}
	return false
}

// detectContentType normalizes the declared type and falls back to sniffing the
// content when nothing useful was declared.
func detectContentType(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	mt, _, err := mime.ParseMediaType(mimetype.Detect(data).String())
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}
