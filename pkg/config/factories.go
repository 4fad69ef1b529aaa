package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/ntufar/fsgate/internal/logger"
	"github.com/ntufar/fsgate/pkg/content"
	contentFs "github.com/ntufar/fsgate/pkg/content/fs"
	contentMemory "github.com/ntufar/fsgate/pkg/content/memory"
	contentS3 "github.com/ntufar/fsgate/pkg/content/s3"
	"github.com/ntufar/fsgate/pkg/statestore"
	stateBadger "github.com/ntufar/fsgate/pkg/statestore/badger"
	stateMemory "github.com/ntufar/fsgate/pkg/statestore/memory"
)

// CreateContentRepository creates the content repository selected by
// the configuration. The Type field picks the implementation; only the
// matching type-specific section is decoded.
func CreateContentRepository(ctx context.Context, cfg *ContentConfig) (content.Repository, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemRepository(ctx, cfg.Filesystem)
	case "memory":
		return contentMemory.New(), nil
	case "s3":
		return createS3Repository(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content repository type: %q", cfg.Type)
	}
}

func createFilesystemRepository(ctx context.Context, options map[string]any) (content.Repository, error) {
	type filesystemConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg filesystemConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem repository config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem repository: path is required")
	}

	repo, err := contentFs.New(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem repository: %w", err)
	}
	return repo, nil
}

func createS3Repository(ctx context.Context, options map[string]any) (content.Repository, error) {
	type s3Config struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg s3Config
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 repository config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 repository: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 repository: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Static credentials when provided, default credential chain
	// otherwise
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoint for S3-compatible storage (MinIO, Localstack)
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	repo, err := contentS3.New(ctx, contentS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 repository: %w", err)
	}

	logger.Info("S3 repository initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)
	return repo, nil
}

// CreateStateSink creates the shutdown snapshot sink selected by the
// configuration. Returns a nil sink for type "none".
func CreateStateSink(ctx context.Context, cfg *StateConfig) (statestore.Sink, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return stateMemory.New(), nil
	case "badger":
		return createBadgerSink(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown state sink type: %q", cfg.Type)
	}
}

func createBadgerSink(ctx context.Context, options map[string]any) (statestore.Sink, error) {
	type badgerConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg badgerConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger sink config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("badger sink: path is required")
	}

	sink, err := stateBadger.New(ctx, stateBadger.Config{DBPath: storeCfg.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger sink: %w", err)
	}
	return sink, nil
}
