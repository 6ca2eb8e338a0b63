package blob

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudhome/cloudhome/internal/utils"
	"github.com/cloudhome/cloudhome/internal/version"
)

// NewClientFromConfig builds a Client on top of the AWS SDK default config chain.
func NewClientFromConfig(ctx context.Context, cfg *S3Config, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4, // passes are sequential
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		// bounds a single transfer, so it must cover the largest file we expect to move
		Timeout: 10 * time.Minute,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
		config.WithAppID(version.AppID()),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Debug("s3 client ready",
		"region", awsCfg.Region,
		"profile", cfg.Profile,
		"endpoint", cfg.Endpoint,
		"accessKey", maskKey(cfg.AccessKey),
	)
	return NewClient(awsClient, logger), nil
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	return utils.MaskSecret(key)
}
