package keys

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signAndVerify(t *testing.T, signer, verifier *KeySet) {
	t.Helper()
	tok, err := jwt.NewWithClaims(signer.Method, jwt.MapClaims{"sub": "u1"}).SignedString(signer.SigningKey)
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok, func(*jwt.Token) (any, error) {
		return verifier.VerificationKey, nil
	}, jwt.WithValidMethods([]string{verifier.Algorithm()}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestNormalizeAlgorithm(t *testing.T) {
	tests := map[string]string{"": AlgRS256, "rs256": AlgRS256, "ed25519": AlgEdDSA, "EdDSA": AlgEdDSA, "hs256": AlgHS256}
	for in, want := range tests {
		got, err := NormalizeAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := NormalizeAlgorithm("none")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestGenerate_PEMRoundTrip(t *testing.T) {
	for _, alg := range []string{AlgRS256, AlgEdDSA} {
		t.Run(alg, func(t *testing.T) {
			ks, err := Generate(alg)
			require.NoError(t, err)
			assert.Equal(t, alg, ks.Algorithm())

			priv, pub, err := EncodePEM(ks)
			require.NoError(t, err)

			full, err := FromPEM(alg, priv, nil)
			require.NoError(t, err)
			verifyOnly, err := FromPEM(alg, nil, pub)
			require.NoError(t, err)
			assert.Nil(t, verifyOnly.SigningKey)

			signAndVerify(t, full, verifyOnly)
		})
	}
}

func TestGenerate_HS256(t *testing.T) {
	ks, err := Generate(AlgHS256)
	require.NoError(t, err)
	signAndVerify(t, ks, ks)

	_, _, err = EncodePEM(ks)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestFromSecret_TooShort(t *testing.T) {
	_, err := FromSecret([]byte("short"))
	assert.Error(t, err)
}

func TestFromPEM_Errors(t *testing.T) {
	_, err := FromPEM(AlgRS256, nil, nil)
	assert.ErrorIs(t, err, ErrNoKeyMaterial)

	_, err = FromPEM(AlgRS256, []byte("not pem"), nil)
	assert.Error(t, err)

	ed, err := Generate(AlgEdDSA)
	require.NoError(t, err)
	priv, _, err := EncodePEM(ed)
	require.NoError(t, err)
	_, err = FromPEM(AlgRS256, priv, nil)
	assert.Error(t, err, "ed25519 key must not load as rsa")

	_, err = FromPEM(AlgHS256, priv, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestLoadFiles(t *testing.T) {
	ks, err := Generate(AlgEdDSA)
	require.NoError(t, err)
	priv, pub, err := EncodePEM(ks)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt.key")
	pubPath := filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	loaded, err := LoadFiles(AlgEdDSA, privPath, pubPath)
	require.NoError(t, err)
	signAndVerify(t, loaded, ks)

	_, err = LoadFiles(AlgEdDSA, filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	calls   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *in.Bucket + "/" + *in.Key
	f.calls = append(f.calls, key)
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestLoadS3(t *testing.T) {
	ks, err := Generate(AlgRS256)
	require.NoError(t, err)
	priv, pub, err := EncodePEM(ks)
	require.NoError(t, err)

	client := &fakeS3{objects: map[string][]byte{
		"secrets/auth/jwt.key": priv,
		"secrets/auth/jwt.pub": pub,
	}}
	opts := S3Options{Bucket: "secrets", PrivateKey: "auth/jwt.key", PublicKey: "auth/jwt.pub"}

	loaded, err := LoadS3(context.Background(), client, AlgRS256, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"secrets/auth/jwt.key", "secrets/auth/jwt.pub"}, client.calls)
	signAndVerify(t, loaded, ks)

	opts.PrivateKey = "auth/other.key"
	_, err = LoadS3(context.Background(), client, AlgRS256, opts)
	assert.ErrorContains(t, err, "s3://secrets/auth/other.key")
}

func TestLoad_Sources(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, Options{Algorithm: AlgRS256})
	assert.ErrorIs(t, err, ErrNoKeyMaterial)

	ks, err := Load(ctx, Options{Algorithm: AlgEdDSA, GenerateIfMissing: true})
	require.NoError(t, err)
	assert.Equal(t, AlgEdDSA, ks.Algorithm())

	ks, err = Load(ctx, Options{Algorithm: AlgHS256, Secret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)
	assert.Equal(t, AlgHS256, ks.Algorithm())

	gen, err := Generate(AlgRS256)
	require.NoError(t, err)
	_, pub, err := EncodePEM(gen)
	require.NoError(t, err)
	pubPath := filepath.Join(t.TempDir(), "jwt.pub")
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	// a public key alone cannot sign
	_, err = Load(ctx, Options{Algorithm: AlgRS256, PrivateKeyFile: "", PublicKeyFile: pubPath})
	assert.ErrorIs(t, err, ErrNoKeyMaterial)
}
