package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"docvault/internal/errs"
)

// ErrInvalidSignature is returned by Memory.VerifySignedURL for tampered or expired URLs.
var ErrInvalidSignature = errors.New("storage: invalid or expired signature")

// MemoryOption configures a Memory provider.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the clock used to compute URL expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

type memoryObject struct {
	data        []byte
	contentType string
}

// Memory is an in-process Provider for tests and local runs. URLs it issues use
// the memory:// scheme and carry an HMAC-SHA256 over "{METHOD}:{key}:{expiresAt}".
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	bucket  string
	secret  []byte
	now     func() time.Time
}

// NewMemory creates an empty in-memory store. The secret is required so that
// URLs are never issued unsigned.
func NewMemory(bucket string, secret []byte, opts ...MemoryOption) (*Memory, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("storage: signing secret is required")
	}
	if bucket == "" {
		bucket = "documents"
	}
	m := &Memory{
		objects: make(map[string]memoryObject),
		bucket:  bucket,
		secret:  append([]byte(nil), secret...),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// UploadObject stores a copy of data under key.
func (m *Memory) UploadObject(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error) {
	const op = "storage.Memory.UploadObject"
	if key == "" {
		return UploadResult{}, errs.Invalid(op, "key", "object key is required")
	}
	if err := ctx.Err(); err != nil {
		return UploadResult{}, errs.Storage(op, key, err)
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	m.mu.Unlock()

	return UploadResult{StorageKey: key, Checksum: Checksum(data), Size: int64(len(data))}, nil
}

// GetSignedURL returns a memory:// URL valid for expiresIn.
func (m *Memory) GetSignedURL(_ context.Context, key string, expiresIn time.Duration, method string) (string, error) {
	method, err := checkSignRequest("storage.Memory.GetSignedURL", key, expiresIn, method)
	if err != nil {
		return "", err
	}
	expiresAt := m.now().Add(expiresIn).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expiresAt, 10))
	q.Set("method", method)
	q.Set("signature", m.sign(method, key, expiresAt))

	u := url.URL{Scheme: "memory", Host: m.bucket, Path: "/" + key, RawQuery: q.Encode()}
	return u.String(), nil
}

// VerifySignedURL checks a URL issued by GetSignedURL at time now and returns the
// object key and method it grants.
func (m *Memory) VerifySignedURL(raw string, now time.Time) (key, method string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "memory" || u.Host != m.bucket || len(u.Path) < 2 {
		return "", "", ErrInvalidSignature
	}
	q := u.Query()
	expiresAt, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return "", "", ErrInvalidSignature
	}
	key = u.Path[1:]
	method = q.Get("method")
	want := m.sign(method, key, expiresAt)
	if !hmac.Equal([]byte(want), []byte(q.Get("signature"))) || now.Unix() > expiresAt {
		return "", "", ErrInvalidSignature
	}
	return key, method, nil
}

// Object returns a copy of the bytes and content type stored under key.
func (m *Memory) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) sign(method, key string, expiresAt int64) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s:%s:%d", method, key, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Provider = (*Memory)(nil)
