// Package keys loads the key material used to sign and verify access
// tokens. A KeySet is loaded once at start and never changes afterwards.
package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported algorithms, named as in the JWT "alg" header.
const (
	AlgRS256 = "RS256"
	AlgEdDSA = "EdDSA"
	AlgHS256 = "HS256"
)

// MinSecretLength is the shortest HMAC secret accepted, in bytes.
const MinSecretLength = 32

const rsaBits = 2048

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrNoKeyMaterial        = errors.New("no key material configured")
)

// KeySet pairs a JWT signing method with its keys. For HS256 both keys are
// the same secret.
type KeySet struct {
	Method          jwt.SigningMethod
	SigningKey      any
	VerificationKey any
}

// Algorithm returns the JWT alg name of the set.
func (k *KeySet) Algorithm() string {
	return k.Method.Alg()
}

// NormalizeAlgorithm maps user input such as "rs256" or "ed25519" to one of
// the Alg constants.
func NormalizeAlgorithm(alg string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "RS256", "":
		return AlgRS256, nil
	case "EDDSA", "ED25519":
		return AlgEdDSA, nil
	case "HS256":
		return AlgHS256, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// FromSecret returns an HS256 key set.
func FromSecret(secret []byte) (*KeySet, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("hmac secret must be at least %d bytes", MinSecretLength)
	}
	s := append([]byte(nil), secret...)
	return &KeySet{Method: jwt.SigningMethodHS256, SigningKey: s, VerificationKey: s}, nil
}

// FromPEM parses an asymmetric key set. Either PEM block may be empty:
// without a private key the set can only verify, and a missing public key
// is derived from the private one.
func FromPEM(alg string, privatePEM, publicPEM []byte) (*KeySet, error) {
	alg, err := NormalizeAlgorithm(alg)
	if err != nil {
		return nil, err
	}
	if len(privatePEM) == 0 && len(publicPEM) == 0 {
		return nil, ErrNoKeyMaterial
	}

	ks := &KeySet{}
	switch alg {
	case AlgRS256:
		ks.Method = jwt.SigningMethodRS256
		if len(privatePEM) > 0 {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return nil, fmt.Errorf("parse rsa private key: %w", err)
			}
			ks.SigningKey = priv
			ks.VerificationKey = &priv.PublicKey
		}
		if len(publicPEM) > 0 {
			pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
			if err != nil {
				return nil, fmt.Errorf("parse rsa public key: %w", err)
			}
			ks.VerificationKey = pub
		}
	case AlgEdDSA:
		ks.Method = jwt.SigningMethodEdDSA
		if len(privatePEM) > 0 {
			priv, err := jwt.ParseEdPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return nil, fmt.Errorf("parse ed25519 private key: %w", err)
			}
			ks.SigningKey = priv
			ks.VerificationKey = priv.(crypto.Signer).Public()
		}
		if len(publicPEM) > 0 {
			pub, err := jwt.ParseEdPublicKeyFromPEM(publicPEM)
			if err != nil {
				return nil, fmt.Errorf("parse ed25519 public key: %w", err)
			}
			ks.VerificationKey = pub
		}
	default:
		return nil, fmt.Errorf("%w: %s keys are not PEM encoded", ErrUnsupportedAlgorithm, alg)
	}
	return ks, nil
}

// LoadFiles reads PEM files from disk. publicPath may be empty.
func LoadFiles(alg, privatePath, publicPath string) (*KeySet, error) {
	var priv, pub []byte
	var err error

	if privatePath != "" {
		if priv, err = os.ReadFile(privatePath); err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
	}
	if publicPath != "" {
		if pub, err = os.ReadFile(publicPath); err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
	}
	return FromPEM(alg, priv, pub)
}

// Generate creates a fresh key set, for development and for keygen.
func Generate(alg string) (*KeySet, error) {
	alg, err := NormalizeAlgorithm(alg)
	if err != nil {
		return nil, err
	}

	switch alg {
	case AlgRS256:
		priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return nil, err
		}
		return &KeySet{Method: jwt.SigningMethodRS256, SigningKey: priv, VerificationKey: &priv.PublicKey}, nil
	case AlgEdDSA:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &KeySet{Method: jwt.SigningMethodEdDSA, SigningKey: priv, VerificationKey: pub}, nil
	default:
		secret := make([]byte, MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		return FromSecret(secret)
	}
}

// EncodePEM returns the PKCS#8 private key and PKIX public key of an
// asymmetric key set.
func EncodePEM(ks *KeySet) (privatePEM, publicPEM []byte, err error) {
	if ks.SigningKey == nil {
		return nil, nil, errors.New("key set has no private key")
	}
	if ks.Method == jwt.SigningMethodHS256 {
		return nil, nil, fmt.Errorf("%w: HS256 has no PEM form", ErrUnsupportedAlgorithm)
	}

	der, err := x509.MarshalPKCS8PrivateKey(ks.SigningKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDer, err := x509.MarshalPKIXPublicKey(ks.VerificationKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDer})
	return privatePEM, publicPEM, nil
}
