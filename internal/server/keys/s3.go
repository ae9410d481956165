package keys

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxObjectSize bounds how much of a key object is read.
const maxObjectSize = 1 << 20

// ObjectGetter is the part of *s3.Client used to fetch keys.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options locate PEM keys in an S3 compatible bucket.
type S3Options struct {
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PrivateKey string
	PublicKey  string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a client for opts. Static credentials are used when
// AccessKey is set, the default AWS chain otherwise.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// LoadS3 fetches PEM keys with client and parses them for alg.
func LoadS3(ctx context.Context, client ObjectGetter, alg string, opts S3Options) (*KeySet, error) {
	var priv, pub []byte
	var err error

	if opts.PrivateKey != "" {
		if priv, err = getObject(ctx, client, opts.Bucket, opts.PrivateKey); err != nil {
			return nil, err
		}
	}
	if opts.PublicKey != "" {
		if pub, err = getObject(ctx, client, opts.Bucket, opts.PublicKey); err != nil {
			return nil, err
		}
	}
	return FromPEM(alg, priv, pub)
}

func getObject(ctx context.Context, client ObjectGetter, bucket, key string) ([]byte, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return b, nil
}
