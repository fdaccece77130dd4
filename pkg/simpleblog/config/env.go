package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
// Resource identifiers:
//
//	ENDPOINT - Public API base URL used in file URLs (default: "http://localhost:8080/api/v1")
//	PROJECT_ID, DATABASE_ID, COLLECTION_ID, BUCKET_ID
//
// Documents:
//
//	DATABASE_URL - One of:
//	               - "memory" - In-memory store (default)
//	               - "postgresql://..." or "postgres://..." - PostgreSQL
//	               - "sqlite://./blog.db" or "sqlite://:memory:" - SQLite
//	DB_SCHEMA - Postgres search_path
//
// Identity:
//
//	IDENTITY_URL - "memory" or a Postgres URL; defaults to DATABASE_URL when that is Postgres
//	SESSION_TTL - Session lifetime as a Go duration (default: "720h")
//
// Storage:
//
//	STORAGE_URL - One of:
//	              - "memory://" - In-memory storage (default)
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//	URL_SIGNING_SECRET - HMAC secret for signed file URLs
//	URL_EXPIRY_SECONDS - Lifetime of signed file URLs (default: 3600)
//
// EVENT_LOGGING - Log post lifecycle events (default: true)
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}

		for key, dst := range map[string]*string{
			"ENDPOINT":           &c.Endpoint,
			"PROJECT_ID":         &c.ProjectID,
			"DATABASE_ID":        &c.DatabaseID,
			"COLLECTION_ID":      &c.CollectionID,
			"BUCKET_ID":          &c.BucketID,
			"DB_SCHEMA":          &c.DBSchema,
			"URL_SIGNING_SECRET": &c.URLSigningSecret,
		} {
			if v, ok := lookupEnv(prefix, key); ok && v != "" {
				*dst = v
			}
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyIdentityEnv(prefix, c); err != nil {
			return err
		}
		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		if seconds, ok, err := parseIntEnv(prefix, "URL_EXPIRY_SECONDS"); err != nil {
			return err
		} else if ok {
			c.SignedURLExpiry = time.Duration(seconds) * time.Second
		}
		if v, ok := lookupEnv(prefix, "SESSION_TTL"); ok && v != "" {
			ttl, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration for %sSESSION_TTL: %w", prefix, err)
			}
			c.SessionTTL = ttl
		}
		if enabled, ok, err := parseBoolEnv(prefix, "EVENT_LOGGING"); err != nil {
			return err
		} else if ok {
			c.EnableEventLogging = enabled
		}

		return nil
	}
}

// applyDatabaseEnv applies document store configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	switch {
	case !hasURL || dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case isPostgresURL(dbURL):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = "sqlite"
		c.SQLitePath = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'sqlite://...')", dbURL)
	}

	return nil
}

// applyIdentityEnv picks the identity backend. Without IDENTITY_URL a
// Postgres document store also hosts accounts.
func applyIdentityEnv(prefix string, c *ServerConfig) error {
	identityURL, hasURL := lookupEnv(prefix, "IDENTITY_URL")

	switch {
	case !hasURL || identityURL == "":
		if c.DatabaseType == "postgres" {
			c.IdentityType = "postgres"
		} else {
			c.IdentityType = "memory"
		}
		c.IdentityURL = ""
	case identityURL == "memory":
		c.IdentityType = "memory"
		c.IdentityURL = ""
	case isPostgresURL(identityURL):
		c.IdentityType = "postgres"
		c.IdentityURL = identityURL
	default:
		return fmt.Errorf("unsupported IDENTITY_URL format: %s (use 'memory' or 'postgresql://...')", identityURL)
	}

	return nil
}

func isPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgresql://") || strings.HasPrefix(s, "postgres://")
}

// applyStorageEnv applies blob store configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}

	if strings.HasPrefix(storageURL, "file://") {
		return applyFilesystemStorage(storageURL, c)
	} else if strings.HasPrefix(storageURL, "s3://") {
		return applyS3Storage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(raw string, c *ServerConfig) error {
	path := strings.TrimPrefix(raw, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.Storage = StorageBackendConfig{
		Type:   "fs",
		Config: map[string]interface{}{"base_dir": path},
	}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&prefix=media&acl=true
func applyS3Storage(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	q := u.Query()
	backend := StorageBackendConfig{
		Type: "s3",
		Config: map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		},
	}
	if v := q.Get("region"); v != "" {
		backend.Config["region"] = v
	}
	if v := q.Get("endpoint"); v != "" {
		backend.Config["endpoint"] = v
	}
	if v := q.Get("path_style"); v != "" {
		backend.Config["use_path_style"] = v
	}
	if v := q.Get("prefix"); v != "" {
		backend.Config["key_prefix"] = v
	}
	if v := q.Get("acl"); v != "" {
		backend.Config["use_acl"] = v
	}
	if v := q.Get("create_bucket"); v != "" {
		backend.Config["create_bucket_if_not_exist"] = v
	}

	// Check for AWS credentials in environment
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		backend.Config["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		backend.Config["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && q.Get("region") == "" {
		backend.Config["region"] = region
	}

	c.Storage = backend
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
