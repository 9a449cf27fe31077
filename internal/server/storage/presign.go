// Package storage hands out presigned S3 URLs for sell-request images.
// Clients PUT the file directly to object storage and submit the returned key
// in the request payload; readers get short-lived GET URLs for stored keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/google/uuid"
)

const (
	uploadTTL   = 15 * time.Minute
	downloadTTL = 15 * time.Minute
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("object storage is not configured")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// Upload is a presigned PUT target.
type Upload struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type Presigner struct {
	cfg S3Config
	now func() time.Time
}

func NewPresigner(cfg S3Config) *Presigner {
	return &Presigner{cfg: cfg, now: time.Now}
}

func (p *Presigner) client(ctx context.Context) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(p.cfg.Region)}
	if p.cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.cfg.AccessKey, p.cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if p.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(p.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// ObjectKey builds the storage key of a new upload owned by ownerID.
func (p *Presigner) ObjectKey(ownerID string) string {
	return models.ImageKey(ownerID, p.now(), uuid.NewString())
}

// PresignUpload returns a fresh key and a URL that accepts a single PUT of
// contentType for a limited time.
func (p *Presigner) PresignUpload(ctx context.Context, ownerID, contentType string) (*Upload, error) {
	if p.cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	pc, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	key := p.ObjectKey(ownerID)
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(pc, ctx, in, s3.WithPresignExpires(uploadTTL))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &Upload{Key: key, URL: req.URL, ExpiresAt: p.now().Add(uploadTTL)}, nil
}

// PresignDownloads returns a GET URL for each distinct key, valid for a
// limited time. One client serves the whole batch.
func (p *Presigner) PresignDownloads(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if p.cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	pc, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	urls := make(map[string]string, len(keys))
	for _, key := range keys {
		if _, ok := urls[key]; ok {
			continue
		}
		req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.cfg.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(downloadTTL))
		if err != nil {
			return nil, fmt.Errorf("presign get %s: %w", key, err)
		}
		urls[key] = req.URL
	}
	return urls, nil
}
