package tools

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StorageTool uploads generated documents and mints presigned download
// URLs, grounded on orchestrator-svc/app/tools/s3.py. The teacher carries
// no object-storage client, so this uses aws-sdk-go-v2's s3 package, the
// only S3 client referenced anywhere in the example pack's dependency
// surface (other_examples manifests).
type StorageTool struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	presignTTL time.Duration
}

func NewStorageTool(ctx context.Context, endpoint, bucket string, presignTTL time.Duration) (*StorageTool, error) {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage tool: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = endpoint != ""
	})
	return &StorageTool{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}, nil
}

func (s *StorageTool) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage tool: upload %s: %w", key, err)
	}
	return nil
}

func (s *StorageTool) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("storage tool: presign %s: %w", key, err)
	}
	return req.URL, nil
}
