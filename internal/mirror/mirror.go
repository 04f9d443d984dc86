// Package mirror optionally copies harvested transcripts to an S3-compatible
// object store, alongside the authoritative copy in the Store. It activates
// only when Setting.OutputDir names an s3:// URL; otherwise transcripts live
// solely in the database, which remains the source of truth either way.
package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Mirror uploads a transcript's plain text to an S3-compatible bucket, keyed
// by channel and video so operators can browse the archive directly without
// going through the control API.
type Mirror struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// IsS3OutputDir reports whether outputDir names an s3:// destination.
func IsS3OutputDir(outputDir string) bool {
	return strings.HasPrefix(outputDir, "s3://")
}

// New configures a Mirror from an s3://bucket/prefix style OutputDir. The
// region is the region argument; credentials come from the ambient AWS
// configuration (env vars, shared config file, or instance profile). A
// non-empty endpoint overrides the S3 endpoint.
func New(ctx context.Context, outputDir, region, endpoint string) (*Mirror, error) {
	bucket, prefix, err := parseS3URL(outputDir)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if strings.TrimSpace(endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})

	return &Mirror{uploader: uploader, bucket: bucket, prefix: prefix}, nil
}

// Upload copies one transcript's content to <prefix>/<channelID>/<videoID>/<language>.txt.
func (m *Mirror) Upload(ctx context.Context, channelID, videoID int64, language, content string) error {
	key := m.key(channelID, videoID, language)
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ACL:         s3types.ObjectCannedACLPrivate,
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("mirror upload %s: %w", key, err)
	}
	return nil
}

func (m *Mirror) key(channelID, videoID int64, language string) string {
	parts := []string{fmt.Sprintf("%d", channelID), fmt.Sprintf("%d", videoID), fmt.Sprintf("%s.txt", language)}
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func parseS3URL(raw string) (bucket, prefix string, err error) {
	if !IsS3OutputDir(raw) {
		return "", "", fmt.Errorf("mirror: %q is not an s3:// url", raw)
	}
	rest := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket = parts[0]
	if bucket == "" {
		return "", "", fmt.Errorf("mirror: missing bucket in %q", raw)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix, nil
}
