package model

import (
	"slices"
	"strings"
	"time"
)

// DocumentType classifies what a stored document is.
type DocumentType string

const (
	TypeContract   DocumentType = "CONTRACT"
	TypeDisclosure DocumentType = "DISCLOSURE"
	TypeInspection DocumentType = "INSPECTION"
	TypeAppraisal  DocumentType = "APPRAISAL"
	TypePhoto      DocumentType = "PHOTO"
	TypeFloorPlan  DocumentType = "FLOOR_PLAN"
	TypeTitle      DocumentType = "TITLE"
	TypeInsurance  DocumentType = "INSURANCE"
	TypeOther      DocumentType = "OTHER"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeContract, TypeDisclosure, TypeInspection, TypeAppraisal, TypePhoto,
		TypeFloorPlan, TypeTitle, TypeInsurance, TypeOther:
		return true
	}
	return false
}

// AccessLevel is the visibility tier of a document.
type AccessLevel string

const (
	AccessPrivate    AccessLevel = "PRIVATE"
	AccessRestricted AccessLevel = "RESTRICTED"
	AccessPublic     AccessLevel = "PUBLIC"
)

// Valid reports whether l is one of the known access levels.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessPrivate, AccessRestricted, AccessPublic:
		return true
	}
	return false
}

// Status is the lifecycle state of a document record.
// StatusArchived is defined for retention workflows but no operation sets it yet.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// DocumentMetadata holds the descriptive and access-control fields of a document.
// AllowedUserIDs and AllowedRoles only take effect when AccessLevel is RESTRICTED.
// There AllowedRoles also grants write access.
type DocumentMetadata struct {
	PropertyID     string            `json:"property_id,omitempty"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Tags           []string          `json:"tags"`
	UploadedBy     string            `json:"uploaded_by"`
	AccessLevel    AccessLevel       `json:"access_level"`
	AllowedUserIDs []string          `json:"allowed_user_ids,omitempty"`
	AllowedRoles   []string          `json:"allowed_roles,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
}

// DocumentVersion describes the bytes stored for one revision of a document.
type DocumentVersion struct {
	Version          int       `json:"version"`
	StorageKey       string    `json:"storage_key"`
	Checksum         string    `json:"checksum"`
	Size             int64     `json:"size"`
	MimeType         string    `json:"mime_type"`
	CreatedAt        time.Time `json:"created_at"`
	UploadedBy       string    `json:"uploaded_by"`
	OriginalFileName string    `json:"original_file_name"`
	ThumbnailKey     string    `json:"thumbnail_key,omitempty"`
}

// DocumentRecord is a versioned document. Versions is append-only and numbered
// contiguously from 1; CurrentVersion always equals the last entry's number.
type DocumentRecord struct {
	ID             string            `json:"id"`
	Type           DocumentType      `json:"type"`
	Metadata       DocumentMetadata  `json:"metadata"`
	Versions       []DocumentVersion `json:"versions"`
	CurrentVersion int               `json:"current_version"`
	Status         Status            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Version returns the version numbered n, if present.
func (r *DocumentRecord) Version(n int) (DocumentVersion, bool) {
	// Versions are contiguous, so the number doubles as an index.
	if n >= 1 && n <= len(r.Versions) && r.Versions[n-1].Version == n {
		return r.Versions[n-1], true
	}
	for _, v := range r.Versions {
		if v.Version == n {
			return v, true
		}
	}
	return DocumentVersion{}, false
}

// Current returns the current version. ok is false for a record without versions.
func (r *DocumentRecord) Current() (DocumentVersion, bool) {
	return r.Version(r.CurrentVersion)
}

// Clone returns a deep copy of r, so callers may mutate the copy freely.
func (r *DocumentRecord) Clone() *DocumentRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Versions = slices.Clone(r.Versions)
	out.Metadata = r.Metadata.Clone()
	return &out
}

// Clone returns a deep copy of m.
func (m DocumentMetadata) Clone() DocumentMetadata {
	out := m
	out.Tags = slices.Clone(m.Tags)
	out.AllowedUserIDs = slices.Clone(m.AllowedUserIDs)
	out.AllowedRoles = slices.Clone(m.AllowedRoles)
	if m.CustomFields != nil {
		out.CustomFields = make(map[string]string, len(m.CustomFields))
		for k, v := range m.CustomFields {
			out.CustomFields[k] = v
		}
	}
	return out
}

// NormalizeTags trims tags, drops empty ones and removes case-insensitive duplicates,
// keeping the first spelling seen.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// AccessContext identifies the caller of an operation.
type AccessContext struct {
	UserID string
	Roles  []string
}

// HasAnyRole reports whether the caller holds at least one of roles.
func (a AccessContext) HasAnyRole(roles []string) bool {
	for _, r := range a.Roles {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}
