package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"  floor plan (2).pdf ", "floor_plan_2_.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan.png`, "scan.png"},
		{"..", "file"},
		{"", "file"},
		{".hidden", "hidden"},
		{"résumé.txt", "r_sum_.txt"},
		{"a..b.pdf", "ab.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}

	long := SanitizeFileName(strings.Repeat("a", 300) + ".pdf")
	assert.Len(t, long, maxFileNameLen)
	assert.True(t, strings.HasSuffix(long, ".pdf"))
}

func TestMIMEAllowed(t *testing.T) {
	patterns := []string{"application/pdf", " Image/* "}

	assert.True(t, MIMEAllowed("application/pdf", patterns))
	assert.True(t, MIMEAllowed("image/webp", patterns))
	assert.False(t, MIMEAllowed("application/zip", patterns))
	assert.False(t, MIMEAllowed("imagex/png", patterns))
	assert.False(t, MIMEAllowed("application/pdf", nil))
	assert.True(t, MIMEAllowed("video/mp4", []string{"*/*"}))
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "documents/abc/v3/deed.pdf", StorageKey("abc", 3, "deed.pdf"))
	assert.Equal(t, "documents/abc/v2/thumbnails/porch_thumb.jpg", ThumbnailKey("abc", 2, "porch.png", "jpg"))
	assert.Equal(t, "documents/abc/v1/thumbnails/scan_thumb.png", ThumbnailKey("abc", 1, "scan", "png"))
}

func TestDetectContentType(t *testing.T) {
	pdf := []byte("%PDF-1.7\n1 0 obj")

	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"declared wins", "text/plain", pdf, "text/plain"},
		{"parameters dropped", "Text/HTML; charset=utf-8", []byte("<p>"), "text/html"},
		{"empty is sniffed", "", pdf, "application/pdf"},
		{"octet stream is sniffed", "application/octet-stream", pdf, "application/pdf"},
		{"garbage is sniffed", "not a type", []byte("plain words"), "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectContentType(tt.declared, tt.data))
		})
	}
}
