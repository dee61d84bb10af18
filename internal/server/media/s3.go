// Package media uploads user images (avatars, cover images) to S3-compatible
// object storage and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/accounts/internal/filex"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/google/uuid"
)

// ErrNoFile is returned by Upload when no local path is given.
var ErrNoFile = errors.New("no file to upload")

// Result describes a stored object.
type Result struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".avif": "image/avif",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".pdf":  "application/pdf",
}

type S3Uploader struct {
	client     putObjectAPI
	bucket     string
	prefix     string
	publicBase string
	logger     logging.Logger
	now        func() time.Time
	newID      func() string
}

// NewS3Uploader builds an uploader from the S3 settings in cfg. Objects are
// stored under prefix.
func NewS3Uploader(ctx context.Context, cfg *config.Config, prefix string, logger logging.Logger) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newUploader(client, cfg.S3Bucket, publicBaseURL(cfg), prefix, logger), nil
}

func newUploader(client putObjectAPI, bucket, publicBase, prefix string, logger logging.Logger) *S3Uploader {
	return &S3Uploader{
		client:     client,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
		logger:     logger.With("module", "media"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// publicBaseURL is S3PublicURL when set, otherwise <endpoint>/<bucket>.
func publicBaseURL(cfg *config.Config) string {
	if cfg.S3PublicURL != "" {
		return cfg.S3PublicURL
	}
	return strings.TrimRight(cfg.S3BaseEndpoint, "/") + "/" + cfg.S3Bucket
}

// Upload stores the file at localPath. The local file is removed if the
// upload fails; on success it is left for the caller.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (res *Result, err error) {
	if localPath == "" {
		return nil, ErrNoFile
	}

	defer func() {
		if err != nil {
			if rmErr := filex.RemoveIfExists(localPath); rmErr != nil {
				u.logger.Warn(ctx, "failed to remove local file", "path", localPath, "error", rmErr)
			}
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}

	ct, err := detectContentType(localPath, f)
	if err != nil {
		return nil, err
	}

	key := u.objectKey(filepath.Ext(localPath))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(ct),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	u.logger.Debug(ctx, "object uploaded", "key", key, "size", info.Size())

	return &Result{
		URL:         u.publicBase + "/" + key,
		Key:         key,
		ContentType: ct,
		Size:        info.Size(),
	}, nil
}

// objectKey is <prefix>/<yyyy>/<mm>/<dd>/<uuid><ext>.
func (u *S3Uploader) objectKey(ext string) string {
	name := u.newID() + strings.ToLower(ext)
	day := u.now().UTC().Format("2006/01/02")
	if u.prefix == "" {
		return path.Join(day, name)
	}
	return path.Join(u.prefix, day, name)
}

// detectContentType looks up the extension first and sniffs the first 512
// bytes otherwise. f is rewound before returning.
func detectContentType(name string, f io.ReadSeeker) (string, error) {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct, nil
	}

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s: %w", name, err)
	}
	return http.DetectContentType(buf[:n]), nil
}
