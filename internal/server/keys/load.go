package keys

import (
	"context"
	"fmt"
)

// Options select where key material comes from. Sources are tried in
// order: S3 bucket, PEM files, HMAC secret, and finally generation when
// GenerateIfMissing is set.
type Options struct {
	Algorithm         string
	PrivateKeyFile    string
	PublicKeyFile     string
	Secret            string
	S3                S3Options
	GenerateIfMissing bool
}

// Load resolves opts into a KeySet that can sign.
func Load(ctx context.Context, opts Options) (*KeySet, error) {
	alg, err := NormalizeAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	var ks *KeySet
	switch {
	case opts.S3.Bucket != "":
		client, err := NewS3Client(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		ks, err = LoadS3(ctx, client, alg, opts.S3)
		if err != nil {
			return nil, err
		}
	case opts.PrivateKeyFile != "":
		ks, err = LoadFiles(alg, opts.PrivateKeyFile, opts.PublicKeyFile)
		if err != nil {
			return nil, err
		}
	case alg == AlgHS256 && opts.Secret != "":
		ks, err = FromSecret([]byte(opts.Secret))
		if err != nil {
			return nil, err
		}
	case opts.GenerateIfMissing:
		return Generate(alg)
	default:
		return nil, ErrNoKeyMaterial
	}

	if ks.SigningKey == nil {
		return nil, fmt.Errorf("%w: private key required to sign", ErrNoKeyMaterial)
	}
	return ks, nil
}
