// Package awsutil builds AWS SDK clients, honouring a custom endpoint for
// LocalStack.
package awsutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Clients bundles the SDK clients the binaries need.
type Clients struct {
	S3  *s3.Client
	SQS *sqs.Client
}

// New loads the default credential chain for region. A non-empty endpoint
// overrides every service endpoint and switches S3 to path-style addressing.
func New(ctx context.Context, region, endpoint string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	sqsClient := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Clients{S3: s3Client, SQS: sqsClient}, nil
}
