package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"docvault/internal/config"
)

// SigV4 query-presign constants.
const (
	SigningAlgorithm = "AWS4-HMAC-SHA256"

	unsignedPayload  = "UNSIGNED-PAYLOAD"
	signedHeaders    = "host"
	scopeTerminator  = "aws4_request"
	amzDateFormat    = "20060102T150405Z"
	dateStampFormat  = "20060102"
	maxPresignExpiry = config.MaxURLTTL
)

// ErrMissingCredentials is returned when the signer is built without an access key or secret.
var ErrMissingCredentials = errors.New("storage: access key and secret key are required")

// Signer produces SigV4 presigned URLs for an S3-compatible bucket.
// It is safe for concurrent use.
type Signer struct {
	accessKey string
	secretKey string
	region    string
	service   string
	bucket    string
	pathStyle bool
	scheme    string
	host      string
}

// NewSigner validates cfg and resolves the host the URLs will be addressed to.
func NewSigner(cfg config.S3Config) (*Signer, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("storage: region is required")
	}
	service := cfg.Service
	if service == "" {
		service = "s3"
	}

	scheme, host, err := resolveEndpoint(cfg.Endpoint, cfg.Region)
	if err != nil {
		return nil, err
	}
	if !cfg.PathStyle {
		host = cfg.Bucket + "." + host
	}

	return &Signer{
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		region:    cfg.Region,
		service:   service,
		bucket:    cfg.Bucket,
		pathStyle: cfg.PathStyle,
		scheme:    scheme,
		host:      host,
	}, nil
}

// resolveEndpoint returns scheme and host for an endpoint override, or the AWS
// regional endpoint when none is configured. Default ports are dropped so the
// signed host header matches what HTTP clients send.
func resolveEndpoint(endpoint, region string) (string, string, error) {
	if endpoint == "" {
		return "https", "s3." + region + ".amazonaws.com", nil
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("storage: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", fmt.Errorf("storage: invalid endpoint %q", endpoint)
	}
	host := u.Host
	switch {
	case u.Scheme == "http" && u.Port() == "80", u.Scheme == "https" && u.Port() == "443":
		host = u.Hostname()
	}
	return u.Scheme, strings.ToLower(host), nil
}

// Presign returns a URL granting method on key for expiresIn, signed as of now.
func (s *Signer) Presign(method, key string, expiresIn time.Duration, now time.Time) (string, error) {
	if expiresIn < time.Second || expiresIn > maxPresignExpiry {
		return "", fmt.Errorf("storage: expiry %s outside 1s..%s", expiresIn, maxPresignExpiry)
	}

	// 1. timestamps
	now = now.UTC()
	amzDate := now.Format(amzDateFormat)
	dateStamp := now.Format(dateStampFormat)

	// 2. canonical URI
	uri := s.canonicalURI(key)

	// 3. canonical query
	scope := s.credentialScope(dateStamp)
	query := canonicalQuery(s.accessKey+"/"+scope, amzDate, int64(expiresIn/time.Second))

	// 4. canonical request
	creq := canonicalRequest(method, uri, query, s.host)

	// 5. string to sign
	sts := stringToSign(amzDate, scope, creq)

	// 6. signing key
	sk := signingKey(s.secretKey, dateStamp, s.region, s.service)

	// 7. signature
	sig := hex.EncodeToString(hmacSHA256(sk, []byte(sts)))

	return s.scheme + "://" + s.host + uri + "?" + query + "&X-Amz-Signature=" + sig, nil
}

func (s *Signer) canonicalURI(key string) string {
	encoded := encodePath(key)
	if s.pathStyle {
		return "/" + uriEncode(s.bucket) + "/" + encoded
	}
	return "/" + encoded
}

func (s *Signer) credentialScope(dateStamp string) string {
	return dateStamp + "/" + s.region + "/" + s.service + "/" + scopeTerminator
}

// canonicalQuery renders the presign parameters in their sorted canonical order.
func canonicalQuery(credential, amzDate string, expiresSec int64) string {
	params := [][2]string{
		{"X-Amz-Algorithm", SigningAlgorithm},
		{"X-Amz-Credential", credential},
		{"X-Amz-Date", amzDate},
		{"X-Amz-Expires", strconv.FormatInt(expiresSec, 10)},
		{"X-Amz-SignedHeaders", signedHeaders},
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = uriEncode(p[0]) + "=" + uriEncode(p[1])
	}
	return strings.Join(parts, "&")
}

func canonicalRequest(method, uri, query, host string) string {
	return strings.Join([]string{
		method,
		uri,
		query,
		"host:" + host + "\n",
		signedHeaders,
		unsignedPayload,
	}, "\n")
}

func stringToSign(amzDate, scope, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return SigningAlgorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(sum[:])
}

func signingKey(secret, dateStamp, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(service))
	return hmacSHA256(k, []byte(scopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// encodePath percent-encodes every segment of an object key, keeping separators.
func encodePath(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = uriEncode(seg)
	}
	return strings.Join(segs, "/")
}

// uriEncode applies RFC 3986 encoding: only unreserved characters pass through
// and escapes use uppercase hex.
func uriEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}
