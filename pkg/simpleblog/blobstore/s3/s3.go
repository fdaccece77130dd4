package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Object metadata keys. S3 returns user metadata keys lowercased.
const (
	metaName        = "name"
	metaPermissions = "permissions"
	metaCreatedAt   = "created-at"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name; logical buckets become key prefixes
	KeyPrefix       string // Optional prefix for every object key
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	// UseACL mirrors read("any") into the public-read canned ACL. Leave it
	// off for buckets with object ownership enforced.
	UseACL bool

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the simpleblog.BlobStore interface
type Backend struct {
	client          *s3.Client
	bucket          string
	presignClient   *s3.PresignClient
	presignDuration time.Duration
	config          Config
}

// New creates a new S3-compatible blob store
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	if config.PresignDuration == 0 {
		config.PresignDuration = 3600
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:          client,
		bucket:          config.Bucket,
		presignClient:   s3.NewPresignClient(client),
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	code := errorCode(err)
	if code != "NotFound" && code != "NoSuchBucket" && code != "BadRequest" {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		switch errorCode(err) {
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func (b *Backend) objectKey(bucketID, fileID string) string {
	k := bucketID + "/" + fileID
	if b.config.KeyPrefix != "" {
		k = strings.TrimRight(b.config.KeyPrefix, "/") + "/" + k
	}
	return k
}

// CreateFile uploads the contents of reader under fileID. An existing
// object is never overwritten.
func (b *Backend) CreateFile(ctx context.Context, bucketID, fileID string, reader io.Reader, params simpleblog.FileParams) (*simpleblog.File, error) {
	now := time.Now().UTC()
	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	body := &countingReader{r: reader}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(bucketID, fileID)),
		Body:        body,
		ContentType: aws.String(mimeType),
		IfNoneMatch: aws.String("*"),
		Metadata:    fileMetadata(params.Name, params.Permissions, now),
	}
	if b.config.UseACL && simpleblog.IsPublic(params.Permissions) {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	b.applySSE(input)

	uploader := manager.NewUploader(b.client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return nil, mapError("upload", err)
	}

	return &simpleblog.File{
		ID:          fileID,
		BucketID:    bucketID,
		Name:        params.Name,
		MimeType:    mimeType,
		Size:        body.n,
		Permissions: append([]simpleblog.Permission(nil), params.Permissions...),
		CreatedAt:   now,
	}, nil
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

// DeleteFile deletes a file. S3 deletes are idempotent, so existence is
// checked first to report ErrFileNotFound.
func (b *Backend) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	key := b.objectKey(bucketID, fileID)
	if _, err := b.head(ctx, key); err != nil {
		return err
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("delete", err)
	}
	return nil
}

// GetFilePreview returns a presigned inline URL. S3 has no image
// transformation, so the original object is served.
func (b *Backend) GetFilePreview(ctx context.Context, bucketID, fileID string, opts simpleblog.PreviewOptions) (string, error) {
	return b.presign(ctx, bucketID, fileID)
}

// GetFileView returns a presigned inline URL for the original file
func (b *Backend) GetFileView(ctx context.Context, bucketID, fileID string) (string, error) {
	return b.presign(ctx, bucketID, fileID)
}

func (b *Backend) presign(ctx context.Context, bucketID, fileID string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(b.objectKey(bucketID, fileID)),
		ResponseContentDisposition: aws.String("inline"),
	}

	result, err := b.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return result.URL, nil
}

// UpdateFile rewrites the object metadata in place with a self copy
func (b *Backend) UpdateFile(ctx context.Context, bucketID, fileID string, update simpleblog.FileUpdate) error {
	key := b.objectKey(bucketID, fileID)
	file, err := b.head(ctx, key)
	if err != nil {
		return err
	}
	if update.Name != nil {
		file.Name = *update.Name
	}
	if update.Permissions != nil {
		file.Permissions = update.Permissions
	}

	input := &s3.CopyObjectInput{
		Bucket:            aws.String(b.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(b.bucket + "/" + key),
		ContentType:       aws.String(file.MimeType),
		Metadata:          fileMetadata(file.Name, file.Permissions, file.CreatedAt),
		MetadataDirective: types.MetadataDirectiveReplace,
	}
	if b.config.UseACL {
		input.ACL = types.ObjectCannedACLPrivate
		if simpleblog.IsPublic(file.Permissions) {
			input.ACL = types.ObjectCannedACLPublicRead
		}
	}

	if _, err := b.client.CopyObject(ctx, input); err != nil {
		return mapError("update", err)
	}
	return nil
}

// SetFilePermissions applies the canned ACL matching permissions, then
// records them in the object metadata
func (b *Backend) SetFilePermissions(ctx context.Context, bucketID, fileID string, permissions []simpleblog.Permission) error {
	if b.config.UseACL {
		acl := types.ObjectCannedACLPrivate
		if simpleblog.IsPublic(permissions) {
			acl = types.ObjectCannedACLPublicRead
		}
		_, err := b.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(bucketID, fileID)),
			ACL:    acl,
		})
		if err != nil {
			return mapError("set permissions", err)
		}
	}
	return b.UpdateFile(ctx, bucketID, fileID, simpleblog.FileUpdate{Permissions: permissions})
}

// GetFile returns file metadata
func (b *Backend) GetFile(ctx context.Context, bucketID, fileID string) (*simpleblog.File, error) {
	file, err := b.head(ctx, b.objectKey(bucketID, fileID))
	if err != nil {
		return nil, err
	}
	file.ID = fileID
	file.BucketID = bucketID
	return file, nil
}

// ReadFile streams a file from S3. The caller closes the returned reader.
func (b *Backend) ReadFile(ctx context.Context, bucketID, fileID string) (io.ReadCloser, *simpleblog.File, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(bucketID, fileID)),
	})
	if err != nil {
		return nil, nil, mapError("download", err)
	}

	file := fileFromObject(result.Metadata, result.ContentType, result.ContentLength)
	file.ID = fileID
	file.BucketID = bucketID
	return result.Body, file, nil
}

func (b *Backend) head(ctx context.Context, key string) (*simpleblog.File, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError("head", err)
	}
	return fileFromObject(result.Metadata, result.ContentType, result.ContentLength), nil
}

func fileMetadata(name string, perms []simpleblog.Permission, createdAt time.Time) map[string]string {
	encoded := make([]string, len(perms))
	for i, p := range perms {
		encoded[i] = string(p)
	}
	return map[string]string{
		metaName:        mime.QEncoding.Encode("utf-8", name),
		metaPermissions: strings.Join(encoded, ","),
		metaCreatedAt:   createdAt.Format(time.RFC3339Nano),
	}
}

// decodeMetadata reverses the RFC 2047 encoding applied to non-ASCII user
// metadata. Values that fail to decode are returned as stored.
func decodeMetadata(value string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func fileFromObject(metadata map[string]string, contentType *string, contentLength *int64) *simpleblog.File {
	file := &simpleblog.File{
		Name:     decodeMetadata(metadata[metaName]),
		MimeType: aws.ToString(contentType),
		Size:     aws.ToInt64(contentLength),
	}
	if file.MimeType == "" {
		file.MimeType = "application/octet-stream"
	}
	if raw := metadata[metaPermissions]; raw != "" {
		for _, p := range strings.Split(raw, ",") {
			file.Permissions = append(file.Permissions, simpleblog.Permission(p))
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, metadata[metaCreatedAt]); err == nil {
		file.CreatedAt = ts
	}
	return file
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// mapError translates S3 API error codes into simpleblog sentinels
func mapError(op string, err error) error {
	switch errorCode(err) {
	case "NoSuchKey", "NotFound":
		return simpleblog.ErrFileNotFound
	case "PreconditionFailed":
		return simpleblog.ErrFileExists
	case "AccessControlListNotSupported":
		return fmt.Errorf("%w: %v", simpleblog.ErrUnsupported, err)
	}
	return fmt.Errorf("failed to %s S3 object: %w", op, err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var (
	_ simpleblog.BlobStore        = (*Backend)(nil)
	_ simpleblog.PermissionSetter = (*Backend)(nil)
	_ simpleblog.FileReader       = (*Backend)(nil)
)
