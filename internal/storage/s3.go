package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/npezzotti/gosocial/internal/types"
)

// DefaultUploadTTL is how long a presigned upload URL stays valid.
const DefaultUploadTTL = 60 * time.Second

const (
	AvatarPrefix = "avatars"
	PostPrefix   = "posts"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// S3Presigner hands out presigned PUT URLs so browsers upload directly to
// the bucket.
type S3Presigner struct {
	presign *s3.PresignClient
	bucket  string
	baseURL string
}

// NewS3Presigner loads AWS credentials from the default chain. baseURL is
// where uploaded objects are publicly readable; it defaults to the bucket's
// virtual-hosted URL.
func NewS3Presigner(ctx context.Context, region, bucket, baseURL string) (*S3Presigner, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3PresignerFromConfig(cfg, bucket, baseURL), nil
}

func NewS3PresignerFromConfig(cfg aws.Config, bucket, baseURL string) *S3Presigner {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	}

	return &S3Presigner{
		presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (p *S3Presigner) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (types.Upload, error) {
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}

	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return types.Upload{}, fmt.Errorf("presign put object: %w", err)
	}

	return types.Upload{
		UploadUrl: req.URL,
		PublicUrl: p.baseURL + "/" + key,
	}, nil
}

// ObjectKey builds <prefix>/<userId>/<unixMillis>-<name>, replacing every
// character outside [a-zA-Z0-9._-] in the file name with an underscore.
func ObjectKey(prefix, userId, fileName string, now time.Time) string {
	safeName := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(fileName), "_")
	return fmt.Sprintf("%s/%s/%d-%s", prefix, userId, now.UnixMilli(), safeName)
}
