package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
)

// maxBatchFiles caps the number of files accepted by one upload request.
const maxBatchFiles = 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// listQuery is the query string accepted by GET /documents.
type listQuery struct {
	PropertyID  string `query:"property_id"`
	Type        string `query:"type"`
	AccessLevel string `query:"access_level"`
	UploadedBy  string `query:"uploaded_by"`
	MimeType    string `query:"mime_type"`
	Tag         string `query:"tag"`
	Search      string `query:"q"`
	CreatedFrom string `query:"created_from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CreatedTo   string `query:"created_to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit       int    `query:"limit" validate:"gte=0,lte=200"`
	Offset      int    `query:"offset" validate:"gte=0"`
}

func (q listQuery) filter() model.DocumentFilter {
	f := model.DocumentFilter{
		PropertyID:  q.PropertyID,
		Type:        documentType(q.Type),
		AccessLevel: accessLevel(q.AccessLevel),
		UploadedBy:  q.UploadedBy,
		MimeType:    q.MimeType,
		Tag:         q.Tag,
		Search:      q.Search,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	// Both were checked by the validator.
	f.CreatedFrom, _ = parseTime(q.CreatedFrom)
	f.CreatedTo, _ = parseTime(q.CreatedTo)
	return f
}

// Enumerations are accepted in any case on input.
func documentType(s string) model.DocumentType {
	return model.DocumentType(strings.ToUpper(strings.TrimSpace(s)))
}

func accessLevel(s string) model.AccessLevel {
	return model.AccessLevel(strings.ToUpper(strings.TrimSpace(s)))
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func unauthorized(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required", "")
}

func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	_, err := uuid.Parse(id)
	return id, err == nil
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", "id")
}

func readFile(fh *multipart.FileHeader) (service.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return service.FileUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.FileUpload{}, err
	}
	return service.FileUpload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

// parseVersion reads the optional ?version= parameter.
func parseVersion(c *fiber.Ctx) (*int, error) {
	raw := c.Query("version")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UploadDocuments creates one document per uploaded file.
//
// @Summary Upload documents
// @Description Multipart upload. Every "files" part becomes a document at version 1; the optional
// @Description "metadata" part is a JSON MetadataInput applied to all of them.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to upload"
// @Param metadata formData string false "MetadataInput as JSON"
// @Success 201 {array} model.DocumentRecord
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /documents [post]
func UploadDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := middleware.AccessContextFrom(c)
		if !ok {
			return unauthorized(c)
		}

		form, err := c.MultipartForm()
		if err != nil || len(form.File["files"]) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "at least one file is required", "files")
		}
		headers := form.File["files"]
		if len(headers) > maxBatchFiles {
			return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES",
				"at most "+strconv.Itoa(maxBatchFiles)+" files per request", "files")
		}

		var input service.MetadataInput
		if raw := form.Value["metadata"]; len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
			if err := json.Unmarshal([]byte(raw[0]), &input); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_METADATA", "metadata must be a JSON object", "metadata")
			}
			input.Type = documentType(string(input.Type))
			input.AccessLevel = accessLevel(string(input.AccessLevel))
		}

		files := make([]service.FileUpload, 0, len(headers))
		for _, fh := range headers {
			f, err := readFile(fh)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file", "files")
			}
			files = append(files, f)
		}

		recs, err := svc.UploadDocuments(c.UserContext(), files, input, ac)
		if err != nil {
			created := make([]string, 0, len(recs))
			for _, r := range recs {
				created = append(created, r.ID)
			}
			return writeServiceError(c, err, created...)
		}
		return c.Status(fiber.StatusCreated).JSON(recs)
	}
}

// AddDocumentVersion appends the uploaded file as the next version of a document.
//
// @Summary Add a document version
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID"
// @Param file formData file true "New version"
// @Success 201 {object} model.DocumentRecord
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /documents/{id}/versions [post]
func AddDocumentVersion(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := middleware.AccessContextFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required", "file")
		}
		file, err := readFile(fh)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file", "file")
		}

		rec, err := svc.AddDocumentVersion(c.UserContext(), id, file, ac)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// UpdateMetadata applies a partial metadata change.
//
// @Summary Update document metadata
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param body body service.MetadataUpdate true "Fields to change"
// @Success 200 {object} model.DocumentRecord
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [patch]
func UpdateMetadata(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := middleware.AccessContextFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}

		var upd service.MetadataUpdate
		if err := c.BodyParser(&upd); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object", "")
		}
		if upd.AccessLevel != nil {
			lvl := accessLevel(string(*upd.AccessLevel))
			upd.AccessLevel = &lvl
		}

		rec, err := svc.UpdateMetadata(c.UserContext(), id, upd, ac)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(rec)
	}
}

// GetDocument returns one document.
//
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} model.DocumentRecord
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := middleware.AccessContextFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}

		rec, err := svc.GetDocument(c.UserContext(), id, ac)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(rec)
	}
}

// ListDocuments returns the documents visible to the caller, newest first.
//
// @Summary List documents
// @Tags documents
// @Produce json
// @Param property_id query string false "Property ID"
// @Param type query string false "Document type"
// @Param access_level query string false "Access level"
// @Param uploaded_by query string false "Uploader"
// @Param mime_type query string false "MIME type of the current version"
// @Param tag query string false "Tag"
// @Param q query string false "Search in title, description and tags"
// @Param created_from query string false "RFC 3339 lower bound, inclusive"
// @Param created_to query string false "RFC 3339 upper bound, inclusive"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Router /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := middleware.AccessContextFrom(c)
		if !ok {
			return unauthorized(c)
		}

		var q listQuery
		if err := c.QueryParser(&q); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUERY", "invalid query parameters", "")
		}
		if err := validate.Struct(q); err != nil {
			field := ""
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				field = verrs[0].Field()
			}
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUERY", "invalid query parameter", field)
		}

		res, err := svc.ListDocuments(c.UserContext(), q.filter(), ac)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetDownloadURL issues a signed download URL.
//
// @Summary Get a signed download URL
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Param version query int false "Version number, current when omitted"
// @Success 200 {object} service.DownloadURL
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /documents/{id}/download [get]
func GetDownloadURL(svc service.DocumentService) fiber.Handler {
	return signedURLHandler(svc.GetDownloadURL)
}

// GetThumbnailURL issues a signed thumbnail URL.
//
// @Summary Get a signed thumbnail URL
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Param version query int false "Version number, current when omitted"
// @Success 200 {object} service.DownloadURL
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/{id}/thumbnail [get]
func GetThumbnailURL(svc service.DocumentService) fiber.Handler {
	return signedURLHandler(svc.GetThumbnailURL)
}

type signFunc func(ctx context.Context, id string, version *int, ac model.AccessContext) (*service.DownloadURL, error)

func signedURLHandler(sign signFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := middleware.AccessContextFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		version, err := parseVersion(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "version must be an integer", "version")
		}

		u, err := sign(c.UserContext(), id, version, ac)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}
