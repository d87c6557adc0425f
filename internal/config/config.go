package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// S3Config holds settings for the built-in SigV4 object store client.
// Endpoint is optional; when empty the AWS regional endpoint is used.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Service   string
	PathStyle bool
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend string `validate:"oneof=memory s3 minio"`
	// SigningSecret signs URLs issued by the in-memory backend.
	SigningSecret string
	S3            S3Config
	MinIO         MinIOConfig
}

// UploadConfig holds the upload policy and URL lifetimes.
type UploadConfig struct {
	AllowedMIMETypes []string `validate:"min=1,dive,required"`
	MaxSizeBytes     int64    `validate:"gt=0"`
	DownloadURLTTL   time.Duration
	ExtraSignatures  []string
}

// ThumbnailConfig holds the target box and encoding of generated thumbnails.
type ThumbnailConfig struct {
	Width   int    `validate:"gt=0"`
	Height  int    `validate:"gt=0"`
	Format  string `validate:"oneof=jpeg jpg png"`
	Quality int    `validate:"min=1,max=100"`
}

// AuthConfig holds settings for resolving the caller identity.
type AuthConfig struct {
	// JWTSecret enables HS256 bearer tokens when set; otherwise identity comes
	// from the trusted gateway headers.
	JWTSecret string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port       string
	LogLevel   string `validate:"oneof=debug info warn error"`
	Repository string `validate:"oneof=memory postgres"`
	Database   DatabaseConfig
	Storage    StorageConfig
	Upload     UploadConfig
	Thumbnail  ThumbnailConfig
	Auth       AuthConfig
}

var defaultMIMETypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:       getEnv("PORT", "8080"),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Repository: getEnv("REPOSITORY_BACKEND", "memory"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "memory"),
			SigningSecret: getEnv("STORAGE_SIGNING_SECRET", ""),
			S3: S3Config{
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Bucket:    getEnv("S3_BUCKET", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
				Service:   getEnv("S3_SERVICE", "s3"),
				PathStyle: getEnvBool("S3_PATH_STYLE", false),
			},
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				Region:    getEnv("MINIO_REGION", "us-east-1"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		Upload: UploadConfig{
			AllowedMIMETypes: getEnvList("UPLOAD_ALLOWED_MIME_TYPES", defaultMIMETypes),
			MaxSizeBytes:     getEnvInt64("UPLOAD_MAX_SIZE_BYTES", 25<<20),
			DownloadURLTTL:   time.Duration(getEnvInt("DOWNLOAD_URL_EXPIRY_SEC", 900)) * time.Second,
			ExtraSignatures:  getEnvList("SCAN_EXTRA_SIGNATURES", nil),
		},
		Thumbnail: ThumbnailConfig{
			Width:   getEnvInt("THUMBNAIL_WIDTH", 320),
			Height:  getEnvInt("THUMBNAIL_HEIGHT", 320),
			Format:  strings.ToLower(getEnv("THUMBNAIL_FORMAT", "jpeg")),
			Quality: getEnvInt("THUMBNAIL_QUALITY", 80),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}
}

// MaxURLTTL is the longest lifetime a SigV4 presigned URL may carry.
const MaxURLTTL = 7 * 24 * time.Hour

// Validate checks value ranges and enumerations. Backend credentials are
// checked by the backends themselves when they are constructed.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Upload.DownloadURLTTL < time.Second || c.Upload.DownloadURLTTL > MaxURLTTL {
		return fmt.Errorf("invalid configuration: DOWNLOAD_URL_EXPIRY_SEC must be between 1 and %d",
			int(MaxURLTTL/time.Second))
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma-separated variable, dropping blank items.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
