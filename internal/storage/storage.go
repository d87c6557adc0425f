// Package storage holds the object storage capability used by the document service
// together with its backends. Backends own raw bytes and URL signing only, never
// document state.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docvault/internal/errs"
)

// UploadResult describes an object that was durably written.
type UploadResult struct {
	StorageKey string
	Checksum   string
	Size       int64
}

// Provider is the object storage capability.
type Provider interface {
	// UploadObject writes data under key. It either fully succeeds or returns a
	// StorageFailure; callers may retry it.
	UploadObject(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error)
	// GetSignedURL returns a self-contained URL granting method on key until the
	// expiry elapses. It performs no network I/O.
	GetSignedURL(ctx context.Context, key string, expiresIn time.Duration, method string) (string, error)
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// checkSignRequest validates the arguments shared by every GetSignedURL implementation
// and returns the normalized method.
func checkSignRequest(op, key string, expiresIn time.Duration, method string) (string, error) {
	if key == "" {
		return "", errs.Invalid(op, "key", "object key is required")
	}
	if expiresIn < time.Second {
		return "", errs.Invalid(op, "expires_in", fmt.Sprintf("expiry must be at least one second, got %s", expiresIn))
	}
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodHead, http.MethodDelete:
		return method, nil
	default:
		return "", errs.Invalid(op, "method", fmt.Sprintf("method %q cannot be presigned", method))
	}
}
