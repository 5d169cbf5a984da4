package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

// ImageStore persists a compressed image and returns the reference products store.
type ImageStore interface {
	Save(ctx context.Context, img *Image) (string, error)
}

// InlineStore embeds images in the product document as data URLs.
type InlineStore struct{}

func (InlineStore) Save(_ context.Context, img *Image) (string, error) {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the bucket images are uploaded to. PublicBaseURL is prepended to
// object keys to form the stored reference.
type S3Config struct {
	Region        string
	Bucket        string
	Prefix        string
	PublicBaseURL string
}

// S3Store uploads images to a bucket and returns their public URL.
type S3Store struct {
	client objectPutter
	cfg    S3Config
	logger *zap.Logger
}

// NewS3Store loads the default AWS credential chain for cfg.Region.
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	return newS3Store(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

func newS3Store(client objectPutter, cfg S3Config, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Store{client: client, cfg: cfg, logger: logger}
}

func (s *S3Store) Save(ctx context.Context, img *Image) (string, error) {
	key := path.Join(s.cfg.Prefix, time.Now().UTC().Format("2006/01"), uuid.NewString()+extension(img.ContentType))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(img.Data),
		ContentType:  aws.String(img.ContentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", &domain.ExternalServiceError{Service: "s3", Op: "upload image", Err: err}
	}
	s.logger.Info("image uploaded", zap.String("bucket", s.cfg.Bucket), zap.String("key", key), zap.Int("bytes", len(img.Data)))
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Uploader runs the compression worker and the image store for one upload.
type Uploader struct {
	compressor *Compressor
	store      ImageStore
}

func NewUploader(compressor *Compressor, store ImageStore) *Uploader {
	return &Uploader{compressor: compressor, store: store}
}

// Upload compresses data and stores the result, returning the image reference.
func (u *Uploader) Upload(ctx context.Context, data []byte) (string, *Image, error) {
	img, err := u.compressor.Compress(ctx, data)
	if err != nil {
		return "", nil, err
	}
	ref, err := u.store.Save(ctx, img)
	if err != nil {
		return "", nil, err
	}
	return ref, img, nil
}
