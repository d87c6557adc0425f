// Package access decides whether a caller may read or modify a document.
// The functions are pure: they look only at the document metadata and the caller.
package access

import (
	"slices"

	"docvault/internal/model"
)

// CanRead reports whether ac may read a document carrying meta.
//
//   - the uploader can always read;
//   - PUBLIC documents are readable by anyone;
//   - RESTRICTED documents are readable by listed users and holders of a listed role;
//   - PRIVATE documents are readable by the uploader only.
func CanRead(meta model.DocumentMetadata, ac model.AccessContext) bool {
	if ac.UserID == "" {
		return false
	}
	if meta.UploadedBy == ac.UserID {
		return true
	}
	switch Level(meta) {
	case model.AccessPublic:
		return true
	case model.AccessRestricted:
		return slices.Contains(meta.AllowedUserIDs, ac.UserID) || ac.HasAnyRole(meta.AllowedRoles)
	case model.AccessPrivate:
		return false
	default:
		panic("access: unhandled access level " + string(meta.AccessLevel))
	}
}

// CanWrite reports whether ac may add versions to or edit a document carrying meta.
// The uploader always qualifies. Holders of an allowed role qualify only while
// the document is RESTRICTED, so a PRIVATE document stays with its uploader.
func CanWrite(meta model.DocumentMetadata, ac model.AccessContext) bool {
	if ac.UserID == "" {
		return false
	}
	if meta.UploadedBy == ac.UserID {
		return true
	}
	return Level(meta) == model.AccessRestricted && ac.HasAnyRole(meta.AllowedRoles)
}

// Level returns the effective access level of meta. Unknown or empty levels
// collapse to PRIVATE.
func Level(meta model.DocumentMetadata) model.AccessLevel {
	if meta.AccessLevel.Valid() {
		return meta.AccessLevel
	}
	return model.AccessPrivate
}
