package reference

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vigil/pkg/api"
)

// S3Source loads a JSON reference summary from an S3 object, for
// deployments where the training pipeline publishes baselines to a
// bucket instead of baking them into the image.
type S3Source struct {
	Bucket string
	Key    string

	client *s3.Client
}

func newS3Source(uri string) (*S3Source, error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("malformed s3 reference URI: %s", uri)
	}
	return &S3Source{Bucket: bucket, Key: key}, nil
}

func (s *S3Source) Load(ctx context.Context) (*api.ReferenceDistribution, error) {
	if s.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s.client = s3.NewFromConfig(cfg)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &s.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference object body: %w", err)
	}
	return parseSummary(data)
}
