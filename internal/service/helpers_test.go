package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docvault/internal/model"
	"docvault/internal/repository/memory"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

var (
	owner    = model.AccessContext{UserID: "owner-1", Roles: []string{"seller"}}
	agent    = model.AccessContext{UserID: "agent-7", Roles: []string{"agent"}}
	buyer    = model.AccessContext{UserID: "buyer-3", Roles: []string{"buyer"}}
	stranger = model.AccessContext{UserID: "stranger-9"}
)

// tickClock advances one second per reading so records get distinct timestamps.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func testConfig() Config {
	return Config{
		AllowedMIMETypes: []string{"application/pdf", "image/*", "text/plain"},
		MaxSizeBytes:     1 << 20,
		DownloadURLTTL:   15 * time.Minute,
		Thumbnail:        thumbnail.Spec{Width: 32, Height: 32, Format: "png"},
	}
}

type fixture struct {
	svc   DocumentService
	store *storage.Memory
	repo  *memory.DocumentMemory
	logs  *observer.ObservedLogs
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := storage.NewMemory("docs", []byte("test-secret"),
		storage.WithMemoryClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	repo, err := memory.New()
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	var seq atomic.Int64
	clock := &tickClock{t: testNow}

	base := []Option{
		WithLogger(zap.New(core).Sugar()),
		WithClock(clock.Now),
		WithIDGenerator(func() string { return fmt.Sprintf("doc-%03d", seq.Add(1)) }),
	}
	svc := NewDocumentService(store, repo, testConfig(), append(base, opts...)...)
	return &fixture{svc: svc, store: store, repo: repo, logs: logs}
}

func pngBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 10), B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pdfFile(name, body string) FileUpload {
	return FileUpload{FileName: name, ContentType: "application/pdf", Data: []byte("%PDF-1.7\n" + body)}
}

func (f *fixture) upload(t *testing.T, ac model.AccessContext, in MetadataInput, files ...FileUpload) []*model.DocumentRecord {
	t.Helper()
	recs, err := f.svc.UploadDocuments(context.Background(), files, in, ac)
	require.NoError(t, err)
	return recs
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }
