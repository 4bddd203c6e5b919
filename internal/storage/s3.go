package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of the S3 client the backend uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Backend stores each document as one object. Metadata travels in the
// object's user metadata.
type S3Backend struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Backend loads the default AWS configuration (region and credentials
// from the environment) and stores objects under prefix in bucket.
func NewS3Backend(ctx context.Context, bucket, prefix string) (*S3Backend, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3BackendFromClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3BackendFromClient wraps an existing client.
func NewS3BackendFromClient(client S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (b *S3Backend) objectKey(id string) string {
	return path.Join(b.prefix, Key(id)+".html")
}

func (b *S3Backend) Save(ctx context.Context, meta Meta, content string) error {
	if err := validID(meta.ID); err != nil {
		return err
	}
	stamp(&meta)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(meta.ID)),
		Body:        bytes.NewReader([]byte(content)),
		ContentType: aws.String("text/html; charset=utf-8"),
		Metadata: map[string]string{
			"name":          url.QueryEscape(meta.Name),
			"preview":       url.QueryEscape(meta.Preview),
			"last-modified": meta.LastModified.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}
	log.Debug().Str("bucket", b.bucket).Str("key", b.objectKey(meta.ID)).Msg("saved document to s3")
	return nil
}

func metaFromObject(id string, m map[string]string) Meta {
	get := func(k string) string {
		for key, v := range m {
			if strings.EqualFold(key, k) {
				return v
			}
		}
		return ""
	}
	meta := Meta{ID: id}
	meta.Name, _ = url.QueryUnescape(get("name"))
	meta.Preview, _ = url.QueryUnescape(get("preview"))
	if t, err := time.Parse(time.RFC3339Nano, get("last-modified")); err == nil {
		meta.LastModified = t
	}
	return meta
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (b *S3Backend) Load(ctx context.Context, id string) (string, Meta, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
	})
	if isNotFound(err) {
		return "", Meta{}, ErrNotFound
	}
	if err != nil {
		return "", Meta{}, fmt.Errorf("failed to download document: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", Meta{}, fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), metaFromObject(id, out.Metadata), nil
}

func (b *S3Backend) Delete(ctx context.Context, id string) error {
	key := aws.String(b.objectKey(id))
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: key}); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: key}); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (b *S3Backend) List(ctx context.Context) ([]Meta, error) {
	prefix := path.Join(b.prefix, KeyPrefix)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	var metas []Meta
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".html") {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(*obj.Key, prefix), ".html")
			head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: obj.Key})
			if err != nil {
				log.Warn().Err(err).Str("key", *obj.Key).Msg("skipping document without metadata")
				continue
			}
			meta := metaFromObject(id, head.Metadata)
			if meta.LastModified.IsZero() && obj.LastModified != nil {
				meta.LastModified = *obj.LastModified
			}
			metas = append(metas, meta)
		}
	}
	sortByModified(metas)
	return metas, nil
}
