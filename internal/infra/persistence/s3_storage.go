package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/spounge-ai/auditchain/internal/domain"
)

// S3API is the subset of the S3 client used for archive manifests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ArchiveSink writes one JSON manifest per archiving pass.
type S3ArchiveSink struct {
	client     S3API
	bucketName string
	prefix     string
	logger     *slog.Logger
}

func NewS3ArchiveSink(cfg aws.Config, bucketName, prefix string, logger *slog.Logger) *S3ArchiveSink {
	return NewS3ArchiveSinkWithClient(s3.NewFromConfig(cfg), bucketName, prefix, logger)
}

func NewS3ArchiveSinkWithClient(client S3API, bucketName, prefix string, logger *slog.Logger) *S3ArchiveSink {
	return &S3ArchiveSink{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
		logger:     logger,
	}
}

// ManifestKey is the object key of a manifest: <prefix>/<yyyy>/<mm>/<archive id>.json.
func (s *S3ArchiveSink) ManifestKey(m *domain.ArchiveManifest) string {
	at := m.ArchivedAt.UTC()
	return path.Join(s.prefix, at.Format("2006"), at.Format("01"), m.ArchiveID+".json")
}

func (s *S3ArchiveSink) PutManifest(ctx context.Context, manifest *domain.ArchiveManifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal archive manifest %s: %w", manifest.ArchiveID, err)
	}

	key := s.ManifestKey(manifest)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               &s.bucketName,
		Key:                  &key,
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("failed to put archive manifest %s to S3: %w", manifest.ArchiveID, err)
	}

	s.logger.InfoContext(ctx, "archive manifest stored", "bucket", s.bucketName, "key", key, "count", manifest.Count)
	return nil
}

// GetManifest reads a manifest back by its object key.
func (s *S3ArchiveSink) GetManifest(ctx context.Context, key string) (*domain.ArchiveManifest, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucketName,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get archive manifest %s from S3: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive manifest %s: %w", key, err)
	}

	var m domain.ArchiveManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archive manifest %s: %w", key, err)
	}
	return &m, nil
}

var _ domain.ArchiveSink = (*S3ArchiveSink)(nil)
