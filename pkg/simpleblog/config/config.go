package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	fsblob "github.com/tendant/simple-blog/pkg/simpleblog/blobstore/fs"
	memoryblob "github.com/tendant/simple-blog/pkg/simpleblog/blobstore/memory"
	s3blob "github.com/tendant/simple-blog/pkg/simpleblog/blobstore/s3"
	memorydocs "github.com/tendant/simple-blog/pkg/simpleblog/docstore/memory"
	pgdocs "github.com/tendant/simple-blog/pkg/simpleblog/docstore/postgres"
	sqlitedocs "github.com/tendant/simple-blog/pkg/simpleblog/docstore/sqlite"
	"github.com/tendant/simple-blog/pkg/simpleblog/fileurl"
	memoryidentity "github.com/tendant/simple-blog/pkg/simpleblog/identity/memory"
	pgidentity "github.com/tendant/simple-blog/pkg/simpleblog/identity/postgres"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		Endpoint:     "http://localhost:8080/api/v1",
		DatabaseID:   "blog",
		CollectionID: "posts",
		BucketID:     "images",
		DatabaseType: "memory",
		IdentityType: "memory",
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		SignedURLExpiry:    time.Hour,
		SessionTTL:         30 * 24 * time.Hour,
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the blog service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Resource identifiers passed through to simpleblog.Config
	Endpoint     string
	ProjectID    string
	DatabaseID   string
	CollectionID string
	BucketID     string

	// Document store configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use
	SQLitePath   string

	// Identity service configuration; empty IdentityURL reuses DatabaseURL
	IdentityType string // "memory", "postgres"
	IdentityURL  string
	SessionTTL   time.Duration

	// Blob store configuration
	Storage StorageBackendConfig

	// Signing of view and preview URLs for private blobs served by the API
	URLSigningSecret string
	SignedURLExpiry  time.Duration

	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for the blob store
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// BlogConfig returns the resource identifiers for simpleblog.New
func (c *ServerConfig) BlogConfig() simpleblog.Config {
	return simpleblog.Config{
		Endpoint:     c.Endpoint,
		ProjectID:    c.ProjectID,
		DatabaseID:   c.DatabaseID,
		CollectionID: c.CollectionID,
		BucketID:     c.BucketID,
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if err := c.BlogConfig().Validate(); err != nil {
		return err
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required when using sqlite")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	switch c.IdentityType {
	case "memory":
	case "postgres":
		if c.identityURL() == "" {
			return errors.New("identity_url is required when using postgres identity")
		}
	default:
		return errors.New("identity_type must be 'memory' or 'postgres'")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case "s3":
		if getString(c.Storage.Config, "bucket", "") == "" {
			return errors.New("bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	return nil
}

func (c *ServerConfig) identityURL() string {
	if c.IdentityURL != "" {
		return c.IdentityURL
	}
	return c.DatabaseURL
}

// Stack is a fully wired Blog with the pieces the HTTP layer needs
type Stack struct {
	Blog   *simpleblog.Blog
	Signer *presigned.Signer

	// Files is set when the blob store is served by this process
	Files simpleblog.FileReader

	closers []func()
}

// Close releases database connections
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build creates the stores and the Blog described by the configuration
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stack := &Stack{
		Signer: presigned.New(
			presigned.WithSecretKey(c.URLSigningSecret),
			presigned.WithDefaultExpiration(c.SignedURLExpiry),
		),
	}

	fail := func(err error) (*Stack, error) {
		stack.Close()
		return nil, err
	}

	urls, err := fileurl.New(c.Endpoint, c.ProjectID, stack.Signer)
	if err != nil {
		return fail(err)
	}

	docs, err := c.buildDocumentStore(ctx, stack)
	if err != nil {
		return fail(fmt.Errorf("failed to build document store: %w", err))
	}

	identity, err := c.buildIdentityService(ctx, stack)
	if err != nil {
		return fail(fmt.Errorf("failed to build identity service: %w", err))
	}

	blobs, err := c.buildStorageBackend(ctx, urls)
	if err != nil {
		return fail(fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err))
	}
	if c.Storage.Type != "s3" {
		if files, ok := blobs.(simpleblog.FileReader); ok {
			stack.Files = files
		}
	}

	var sink simpleblog.EventSink = simpleblog.NewNoopEventSink()
	if c.EnableEventLogging {
		sink = simpleblog.NewLogEventSink(logger)
	}

	blog, err := simpleblog.New(c.BlogConfig(),
		simpleblog.WithDocumentStore(docs),
		simpleblog.WithBlobStore(blobs),
		simpleblog.WithIdentityService(identity),
		simpleblog.WithEventSink(sink),
		simpleblog.WithLogger(logger),
	)
	if err != nil {
		return fail(err)
	}
	stack.Blog = blog
	return stack, nil
}

func (c *ServerConfig) buildDocumentStore(ctx context.Context, stack *Stack) (simpleblog.DocumentStore, error) {
	switch c.DatabaseType {
	case "memory":
		return memorydocs.New(), nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, pool.Close)
		if err := pgdocs.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		return pgdocs.NewWithPool(pool), nil
	case "sqlite":
		store, err := sqlitedocs.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildIdentityService(ctx context.Context, stack *Stack) (simpleblog.IdentityService, error) {
	switch c.IdentityType {
	case "memory":
		return memoryidentity.New(memoryidentity.WithSessionTTL(c.SessionTTL)), nil
	case "postgres":
		pool, err := newPool(ctx, c.identityURL(), c.DBSchema)
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, pool.Close)
		if err := pgidentity.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		return pgidentity.New(pool, c.SessionTTL, 0), nil
	default:
		return nil, fmt.Errorf("unsupported identity type: %s", c.IdentityType)
	}
}

// newPool opens a pgx pool, optionally pinning search_path to schema
func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates the BlobStore described by c.Storage
func (c *ServerConfig) buildStorageBackend(ctx context.Context, urls *fileurl.Builder) (simpleblog.BlobStore, error) {
	config := c.Storage.Config
	switch c.Storage.Type {
	case "memory":
		return memoryblob.New(urls), nil

	case "fs":
		return fsblob.New(fsblob.Config{
			BaseDir: getString(config, "base_dir", "./data/storage"),
			URLs:    urls,
		})

	case "s3":
		return s3blob.New(ctx, s3blob.Config{
			Region:                 getString(config, "region", "us-east-1"),
			Bucket:                 getString(config, "bucket", ""),
			KeyPrefix:              getString(config, "key_prefix", ""),
			AccessKeyID:            getString(config, "access_key_id", ""),
			SecretAccessKey:        getString(config, "secret_access_key", ""),
			Endpoint:               getString(config, "endpoint", ""),
			UsePathStyle:           getBool(config, "use_path_style", false),
			PresignDuration:        getInt(config, "presign_duration", 3600),
			UseACL:                 getBool(config, "use_acl", false),
			EnableSSE:              getBool(config, "enable_sse", false),
			SSEAlgorithm:           getString(config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func getInt(config map[string]interface{}, key string, defaultValue int) int {
	if value, exists := config[key]; exists {
		if i, ok := value.(int); ok {
			return i
		}
		if str, ok := value.(string); ok {
			if i, err := strconv.Atoi(str); err == nil {
				return i
			}
		}
		if f, ok := value.(float64); ok {
			return int(f)
		}
	}
	return defaultValue
}
