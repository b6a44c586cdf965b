// Package s3assets stores record assets in S3-compatible object storage.
package s3assets

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/netx"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/google/uuid"
)

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) error {
		_, err := c.DeleteObject(ctx, in)
		return err
	}
)

// Config holds object storage settings.
type Config struct {
	Region       string `json:"region"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Endpoint     string `json:"endpoint"`
	PublicURL    string `json:"public_url"`
	UsePathStyle bool   `json:"use_path_style"`
}

// Client is shared by every bucket.
type Client struct {
	s3        *s3.Client
	presign   *s3.PresignClient
	http      netx.HTTPDoer
	publicURL string
}

// New builds a client from cfg using static credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	c := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = cfg.Endpoint
	}

	return &Client{
		s3:        c,
		presign:   s3.NewPresignClient(c),
		http:      &http.Client{Timeout: remote.DefaultTimeout},
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Bucket returns the asset store backed by bucket.
func (c *Client) Bucket(bucket string) *Store {
	return &Store{c: c, bucket: bucket}
}

// Store is a remote.AssetStore for one bucket.
type Store struct {
	c      *Client
	bucket string
}

var _ remote.AssetStore = (*Store)(nil)

// StorageKey returns a fresh object key for a file called name.
func StorageKey(name string, now time.Time) string {
	return fmt.Sprintf("%d/%02d/%v%s", now.Year(), now.Month(), uuid.New(), strings.ToLower(path.Ext(name)))
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *Store) Upload(ctx context.Context, data []byte, name string) (remote.Asset, error) {
	key := StorageKey(name, time.Now())
	ct := contentType(name)

	req, err := presignPutObject(s.c.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(ct),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return remote.Asset{}, common.NewRemoteError("upload", s.bucket, common.KindRemoteUnavailable, err)
	}

	if err := netx.UploadToPresignedURL(ctx, s.c.http, req.URL, ct, data); err != nil {
		return remote.Asset{}, common.NewRemoteError("upload", s.bucket, uploadKind(err), err)
	}

	return remote.Asset{URL: s.objectURL(key), Path: key}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := deleteObject(s.c.s3, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return common.NewRemoteError("delete_asset", s.bucket, common.KindRemoteUnavailable, err)
	}
	return nil
}

func (s *Store) objectURL(key string) string {
	return s.c.publicURL + "/" + s.bucket + "/" + key
}

func uploadKind(err error) common.Kind {
	var ue *netx.UploadError
	if !errors.As(err, &ue) {
		return common.KindRemoteUnavailable
	}
	switch {
	case ue.Status == http.StatusUnauthorized, ue.Status == http.StatusForbidden:
		return common.KindUnauthorized
	case ue.Status == http.StatusRequestTimeout, ue.Status == http.StatusTooManyRequests, ue.Status >= 500:
		return common.KindRemoteUnavailable
	default:
		return common.KindConflict
	}
}
