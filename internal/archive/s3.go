// Package archive uploads audit reports to S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Config holds the S3 destination of archived reports.
type Config struct {
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	Region     string `yaml:"region"`
	RoleARN    string `yaml:"role_arn"`    // IAM role to assume (optional)
	ExternalID string `yaml:"external_id"` // External ID for assume role (optional)
}

// Enabled returns true if a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// putObjectAPI is the subset of the S3 client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes reports to an S3 bucket.
type S3Archive struct {
	cfg    Config
	client putObjectAPI
}

// New creates an S3Archive using the default credential chain, assuming
// cfg.RoleARN when set.
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	if cfg.RoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		creds := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.ExternalID != "" {
				o.ExternalID = &cfg.ExternalID
			}
			o.Duration = 1 * time.Hour
		})
		awsCfg.Credentials = aws.NewCredentialsCache(creds)
	}

	return &S3Archive{cfg: cfg, client: s3.NewFromConfig(awsCfg)}, nil
}

// Upload stores a JSON report and returns its object key.
func (a *S3Archive) Upload(ctx context.Context, collectedAt time.Time, runID string, report []byte) (string, error) {
	key := ObjectKey(a.cfg.Prefix, collectedAt, runID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(report),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading report to s3://%s/%s: %w", a.cfg.Bucket, key, err)
	}
	return key, nil
}

// ObjectKey builds a date-partitioned object key for a report.
func ObjectKey(prefix string, collectedAt time.Time, runID string) string {
	t := collectedAt.UTC()
	name := fmt.Sprintf("%s-%s.json", t.Format("20060102T150405Z"), runID)
	return path.Join(strings.Trim(prefix, "/"), t.Format("2006/01/02"), name)
}
