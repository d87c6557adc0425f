package model

import (
	"strings"
	"time"
)

// DocumentFilter narrows a document listing. Zero-valued fields are ignored and
// all populated fields must match.
type DocumentFilter struct {
	PropertyID  string
	Type        DocumentType
	AccessLevel AccessLevel
	UploadedBy  string
	// MimeType is compared against the current version only.
	MimeType string
	// CreatedFrom and CreatedTo bound CreatedAt inclusively.
	CreatedFrom time.Time
	CreatedTo   time.Time
	// Tag matches one tag exactly, ignoring case.
	Tag string
	// Search is a case-insensitive substring looked up in title, description and tags.
	Search string

	Limit  int
	Offset int
}

// Matches reports whether r satisfies every populated criterion of f.
// Limit and Offset are not considered.
func (f DocumentFilter) Matches(r *DocumentRecord) bool {
	m := r.Metadata
	if f.PropertyID != "" && m.PropertyID != f.PropertyID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.AccessLevel != "" && m.AccessLevel != f.AccessLevel {
		return false
	}
	if f.UploadedBy != "" && m.UploadedBy != f.UploadedBy {
		return false
	}
	if f.MimeType != "" {
		cur, ok := r.Current()
		if !ok || !strings.EqualFold(cur.MimeType, f.MimeType) {
			return false
		}
	}
	if !f.CreatedFrom.IsZero() && r.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && r.CreatedAt.After(f.CreatedTo) {
		return false
	}
	if f.Tag != "" && !hasTag(m.Tags, f.Tag) {
		return false
	}
	if f.Search != "" && !containsText(m, f.Search) {
		return false
	}
	return true
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func containsText(m DocumentMetadata, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(m.Title), q) ||
		strings.Contains(strings.ToLower(m.Description), q) {
		return true
	}
	for _, t := range m.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
