package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Client handles object storage operations against an S3-compatible
// endpoint. Video bytes go directly from the browser to storage via
// presigned URLs; this service never proxies file contents.
type Client struct {
	s3Client *s3.S3
	bucket   string
	region   string
	endpoint string
}

// Config holds configuration for the storage client
type Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
}

// NewClient creates a new storage client
func NewClient(config Config) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}

	return &Client{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
		region:   config.Region,
		endpoint: config.Endpoint,
	}, nil
}

// Bucket returns the configured bucket name
func (c *Client) Bucket() string {
	return c.bucket
}

// PresignUpload generates a presigned PUT URL for a direct
// client-to-storage upload of the given key.
func (c *Client) PresignUpload(key, contentType string, expiration time.Duration) (string, error) {
	req, _ := c.s3Client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload URL: %w", err)
	}
	return url, nil
}

// PresignDownload generates a presigned GET URL for temporary playback access
func (c *Client) PresignDownload(key string, expiration time.Duration) (string, error) {
	req, _ := c.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return url, nil
}

// DeleteObject deletes an object from storage
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// ObjectExists checks if an object exists in storage. A missing key is
// (false, nil); any other storage failure is returned as an error.
func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object: %w", err)
	}
	return true, nil
}

// VideoKey builds the storage key for a video upload. The coach id is
// embedded as a path segment so the completion phase can verify the key
// was issued to the caller.
func VideoKey(coachID, studentID uint, filename string) string {
	timestamp := time.Now().Unix()
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	return fmt.Sprintf("videos/coach_%d/student_%d/%d_%s%s", coachID, studentID, timestamp, base, ext)
}

// CoachIDFromKey extracts the coach id segment from a video storage key.
// Returns an error when the key does not follow the VideoKey layout.
func CoachIDFromKey(key string) (uint, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 4 || parts[0] != "videos" || !strings.HasPrefix(parts[1], "coach_") {
		return 0, fmt.Errorf("malformed storage key: %s", key)
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "coach_"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed coach segment in storage key: %s", key)
	}
	return uint(id), nil
}

// VideoContentType returns the MIME type for a video filename
func VideoContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
