// Package aws adapts the managed services the pipeline and the runtime path
// depend on. Each service is reached through a narrow API interface satisfied
// by the SDK client, so tests can substitute fakes; the exported services turn
// those calls into "invoke and await a terminal state" operations.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

// LoadConfig builds the SDK configuration for cfg.Region. Static credentials
// are used when an access key is configured, otherwise the default chain applies.
func LoadConfig(ctx context.Context, cfg *config.ServicesConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Credentials.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Credentials.AccessKeyID,
			cfg.Credentials.SecretAccessKey,
			cfg.Credentials.SessionToken,
		)))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
