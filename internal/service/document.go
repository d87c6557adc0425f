// Package service implements the document use cases: ingest, versioning,
// metadata edits, policy-filtered reads and signed URL issuance.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/errs"
	"docvault/internal/locker"
	"docvault/internal/logging"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/scan"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	defaultURLTTL    = 15 * time.Minute
)

// FileUpload is one file handed to the service. ContentType may be empty, in
// which case it is sniffed from Data.
type FileUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MetadataInput describes documents created by UploadDocuments. Title defaults to
// the file name, Type to OTHER and AccessLevel to PRIVATE.
type MetadataInput struct {
	Type           model.DocumentType `json:"type"`
	PropertyID     string             `json:"property_id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Tags           []string           `json:"tags"`
	AccessLevel    model.AccessLevel  `json:"access_level"`
	AllowedUserIDs []string           `json:"allowed_user_ids"`
	AllowedRoles   []string           `json:"allowed_roles"`
	CustomFields   map[string]string  `json:"custom_fields"`
}

// MetadataUpdate is a partial metadata change; nil fields are left untouched.
// CustomFields entries are merged key by key and an empty value removes the key.
type MetadataUpdate struct {
	PropertyID     *string            `json:"property_id,omitempty"`
	Title          *string            `json:"title,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Tags           *[]string          `json:"tags,omitempty"`
	AccessLevel    *model.AccessLevel `json:"access_level,omitempty"`
	AllowedUserIDs *[]string          `json:"allowed_user_ids,omitempty"`
	AllowedRoles   *[]string          `json:"allowed_roles,omitempty"`
	CustomFields   map[string]string  `json:"custom_fields,omitempty"`
	// OwnerOverride replaces UploadedBy. Any caller with write access may set it.
	OwnerOverride *string `json:"owner_override,omitempty"`
}

// DownloadURL is a time-boxed signed URL for one version of a document.
type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int       `json:"version"`
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []*model.DocumentRecord `json:"data"`
	Total int                     `json:"total"`
}

// Config is the upload policy and URL lifetime applied by the service.
type Config struct {
	// AllowedMIMETypes holds exact types or "family/*" patterns.
	AllowedMIMETypes []string
	MaxSizeBytes     int64
	DownloadURLTTL   time.Duration
	Thumbnail        thumbnail.Spec
}

// DocumentService defines the use cases for handling documents. Every method
// requires a caller identity and returns *errs.Error values for classified failures.
type DocumentService interface {
	// UploadDocuments creates one document per file, each at version 1, and
	// returns them in input order. All files are validated before any upload.
	// When a later file fails to store, the documents already created are
	// returned together with the error.
	UploadDocuments(ctx context.Context, files []FileUpload, input MetadataInput, ac model.AccessContext) ([]*model.DocumentRecord, error)

	// AddDocumentVersion appends file as the next version of document id.
	AddDocumentVersion(ctx context.Context, id string, file FileUpload, ac model.AccessContext) (*model.DocumentRecord, error)

	// UpdateMetadata merges upd into the metadata of document id.
	UpdateMetadata(ctx context.Context, id string, upd MetadataUpdate, ac model.AccessContext) (*model.DocumentRecord, error)

	// GetDocument returns document id if the caller may read it.
	GetDocument(ctx context.Context, id string, ac model.AccessContext) (*model.DocumentRecord, error)

	// ListDocuments returns the readable documents matching filter, newest first.
	ListDocuments(ctx context.Context, filter model.DocumentFilter, ac model.AccessContext) (*DocumentListResult, error)

	// GetDownloadURL signs a GET URL for a version of document id, the current
	// one when version is nil.
	GetDownloadURL(ctx context.Context, id string, version *int, ac model.AccessContext) (*DownloadURL, error)

	// GetThumbnailURL is GetDownloadURL for the thumbnail of a version.
	GetThumbnailURL(ctx context.Context, id string, version *int, ac model.AccessContext) (*DownloadURL, error)
}

// ContentScanner rejects malicious content.
type ContentScanner interface {
	Scan(data []byte) error
}

// Option configures a documentService.
type Option func(*documentService)

// WithScanner replaces the default signature scanner.
func WithScanner(s ContentScanner) Option {
	return func(d *documentService) { d.scanner = s }
}

// WithThumbnailer replaces the default resizer. A nil thumbnailer disables thumbnails.
func WithThumbnailer(t thumbnail.Thumbnailer) Option {
	return func(d *documentService) { d.thumbs = t }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *documentService) { d.log = l }
}

// WithMetrics sets the domain counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *documentService) { d.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *documentService) { d.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(gen func() string) Option {
	return func(d *documentService) { d.newID = gen }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store   storage.Provider
	repo    repository.DocumentRepository
	cfg     Config
	scanner ContentScanner
	thumbs  thumbnail.Thumbnailer
	locks   *locker.Locker
	log     logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Provider, repo repository.DocumentRepository, cfg Config, opts ...Option) DocumentService {
	if cfg.DownloadURLTTL <= 0 {
		cfg.DownloadURLTTL = defaultURLTTL
	}
	s := &documentService{
		store:   store,
		repo:    repo,
		cfg:     cfg,
		scanner: scan.New(),
		thumbs:  thumbnail.NewResizer(),
		locks:   locker.New(),
		log:     logging.Nop(),
		tracer:  otel.Tracer("docvault/internal/service"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *documentService) clock() time.Time {
	return s.now().UTC()
}

// startSpan opens a span named after op; the returned func records err and ends it.
func (s *documentService) startSpan(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, op)
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

func requireCaller(op string, ac model.AccessContext) error {
	if ac.UserID == "" {
		return errs.Invalid(op, "user_id", "caller identity is required")
	}
	return nil
}

// load fetches a record and maps repository errors into the taxonomy.
func (s *documentService) load(ctx context.Context, op, id string) (*model.DocumentRecord, error) {
	if id == "" {
		return nil, errs.Invalid(op, "id", "document id is required")
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFoundDocument(op, id, nil)
		}
		return nil, fmt.Errorf("%s: load document %s: %w", op, id, err)
	}
	return rec, nil
}

func (s *documentService) forbidden(op, id string, ac model.AccessContext) error {
	s.metrics.AccessDenied(op)
	s.log.Infow("access denied", "op", op, "document_id", id, "user_id", ac.UserID)
	return errs.ForbiddenDocument(op, id)
}
