package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docvault/internal/config"
	"docvault/internal/errs"
)

// uploadURLExpiry bounds how long the internal PUT URL used by UploadObject stays valid.
const uploadURLExpiry = 15 * time.Minute

// S3Option configures an S3 provider.
type S3Option func(*S3)

// WithHTTPClient replaces the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) S3Option {
	return func(s *S3) { s.client = c }
}

// WithClock overrides the signing clock.
func WithClock(now func() time.Time) S3Option {
	return func(s *S3) { s.now = now }
}

// S3 is a Provider for S3-compatible object stores that signs requests itself
// with SigV4 query presigning. Uploads are plain HTTP PUTs to a presigned URL.
type S3 struct {
	signer *Signer
	client *http.Client
	now    func() time.Time
}

// NewS3 builds the provider. Missing credentials fail here rather than at first use.
func NewS3(cfg config.S3Config, opts ...S3Option) (*S3, error) {
	signer, err := NewSigner(cfg)
	if err != nil {
		return nil, err
	}
	s := &S3{
		signer: signer,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   2 * time.Minute,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadObject PUTs data to key through a URL from the same signer that serves downloads.
func (s *S3) UploadObject(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error) {
	const op = "storage.S3.UploadObject"
	if key == "" {
		return UploadResult{}, errs.Invalid(op, "key", "object key is required")
	}

	u, err := s.signer.Presign(http.MethodPut, key, uploadURLExpiry, s.now())
	if err != nil {
		return UploadResult{}, errs.Storage(op, key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, errs.Storage(op, key, fmt.Errorf("build request: %w", err))
	}
	req.ContentLength = int64(len(data))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return UploadResult{}, errs.Storage(op, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return UploadResult{}, errs.Storage(op, key,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return UploadResult{StorageKey: key, Checksum: Checksum(data), Size: int64(len(data))}, nil
}

// GetSignedURL presigns method on key. It performs no network I/O.
func (s *S3) GetSignedURL(_ context.Context, key string, expiresIn time.Duration, method string) (string, error) {
	const op = "storage.S3.GetSignedURL"
	method, err := checkSignRequest(op, key, expiresIn, method)
	if err != nil {
		return "", err
	}
	if expiresIn > maxPresignExpiry {
		return "", errs.Invalid(op, "expires_in", fmt.Sprintf("expiry cannot exceed %s", maxPresignExpiry))
	}
	u, err := s.signer.Presign(method, key, expiresIn, s.now())
	if err != nil {
		return "", errs.Storage(op, key, err)
	}
	return u, nil
}

var _ Provider = (*S3)(nil)
