// Package metrics holds the domain counters exported on /metrics.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docvault"

// Metrics is the set of document engine counters.
type Metrics struct {
	documentsUploaded *prometheus.CounterVec
	versionsAdded     prometheus.Counter
	bytesUploaded     prometheus.Counter
	maliciousRejected prometheus.Counter
	accessDenied      *prometheus.CounterVec
	storageFailures   *prometheus.CounterVec
	thumbnailFailures prometheus.Counter
	signedURLs        *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		documentsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_uploaded_total",
			Help:      "Documents created, by document type.",
		}, []string{"type"}),
		versionsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_added_total",
			Help:      "Versions appended to existing documents.",
		}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to object storage for document versions.",
		}),
		maliciousRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malicious_files_rejected_total",
			Help:      "Files rejected by the content scanner.",
		}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Operations refused by the access policy, by operation.",
		}, []string{"op"}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Object storage calls that failed, by operation.",
		}, []string{"op"}),
		thumbnailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnail_failures_total",
			Help:      "Thumbnails that could not be generated or stored.",
		}),
		signedURLs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_urls_total",
			Help:      "Signed URLs issued, by purpose.",
		}, []string{"purpose"}),
	}

	for _, c := range []prometheus.Collector{
		m.documentsUploaded, m.versionsAdded, m.bytesUploaded, m.maliciousRejected,
		m.accessDenied, m.storageFailures, m.thumbnailFailures, m.signedURLs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DocumentUploaded records a new document of docType holding size bytes.
func (m *Metrics) DocumentUploaded(docType string, size int64) {
	if m == nil {
		return
	}
	m.documentsUploaded.WithLabelValues(docType).Inc()
	m.bytesUploaded.Add(float64(size))
}

// VersionAdded records an appended version holding size bytes.
func (m *Metrics) VersionAdded(size int64) {
	if m == nil {
		return
	}
	m.versionsAdded.Inc()
	m.bytesUploaded.Add(float64(size))
}

// MaliciousRejected records a file refused by the scanner.
func (m *Metrics) MaliciousRejected() {
	if m == nil {
		return
	}
	m.maliciousRejected.Inc()
}

// AccessDenied records a Forbidden outcome for op.
func (m *Metrics) AccessDenied(op string) {
	if m == nil {
		return
	}
	m.accessDenied.WithLabelValues(op).Inc()
}

// StorageFailure records a failed storage call for op.
func (m *Metrics) StorageFailure(op string) {
	if m == nil {
		return
	}
	m.storageFailures.WithLabelValues(op).Inc()
}

// ThumbnailFailure records a swallowed thumbnail error.
func (m *Metrics) ThumbnailFailure() {
	if m == nil {
		return
	}
	m.thumbnailFailures.Inc()
}

// SignedURLIssued records a signed URL for purpose ("download" or "thumbnail").
func (m *Metrics) SignedURLIssued(purpose string) {
	if m == nil {
		return
	}
	m.signedURLs.WithLabelValues(purpose).Inc()
}
