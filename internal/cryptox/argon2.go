// Package cryptox implements password hashing with argon2id. Hashes are
// self-describing PHC strings:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// where salt and key are unpadded standard base64.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/gophauth/internal/shared"
)

const algorithmID = "argon2id"

// Upper bounds applied to parameters read back from stored hashes, so a
// tampered row cannot make Verify allocate unbounded memory.
const (
	maxMemoryKiB   = 1 << 20
	maxIterations  = 64
	maxKeyLength   = 128
	minKeyLength   = 16
	minSaltLength  = 8
	maxSaltLength  = 64
	maxParallelism = 255
)

var (
	// ErrEmptyPassword is returned by Hash for an empty password.
	ErrEmptyPassword = errors.New("empty password")
	// ErrInvalidParams is returned by NewArgon2Hasher for unusable parameters.
	ErrInvalidParams = errors.New("invalid argon2 parameters")
)

// Argon2Params are the cost parameters of argon2id.
type Argon2Params struct {
	// Memory in KiB.
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params are 64 MiB, one pass, four lanes, 16-byte salt and a
// 32-byte key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Argon2Params) validate() error {
	switch {
	case p.Memory == 0 || p.Memory > maxMemoryKiB:
		return fmt.Errorf("%w: memory %d", ErrInvalidParams, p.Memory)
	case p.Memory < 8*uint32(p.Parallelism):
		return fmt.Errorf("%w: memory %d below 8*parallelism", ErrInvalidParams, p.Memory)
	case p.Iterations == 0 || p.Iterations > maxIterations:
		return fmt.Errorf("%w: iterations %d", ErrInvalidParams, p.Iterations)
	case p.Parallelism == 0:
		return fmt.Errorf("%w: parallelism 0", ErrInvalidParams)
	case p.SaltLength < minSaltLength || p.SaltLength > maxSaltLength:
		return fmt.Errorf("%w: salt length %d", ErrInvalidParams, p.SaltLength)
	case p.KeyLength < minKeyLength || p.KeyLength > maxKeyLength:
		return fmt.Errorf("%w: key length %d", ErrInvalidParams, p.KeyLength)
	}
	return nil
}

// Argon2Hasher hashes and verifies passwords. It is safe for concurrent use.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher returns a hasher producing hashes with params.
func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{params: params}, nil
}

// Params returns the parameters new hashes are created with.
func (h *Argon2Hasher) Params() Argon2Params {
	return h.params
}

// Hash derives a salted argon2id hash of password and returns it encoded.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt, err := shared.MakeRandBytes(int(h.params.SaltLength))
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	pw := []byte(password)
	defer shared.WipeByteArray(pw)

	key := deriveKey(pw, salt, h.params)
	defer shared.WipeByteArray(key)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Parameters are taken from
// encoded, not from h. Malformed or out-of-bounds hashes never match.
func (h *Argon2Hasher) Verify(password, encoded string) bool {
	pw := []byte(password)
	defer shared.WipeByteArray(pw)

	params, salt, want, err := decode(encoded)
	if err != nil {
		// a corrupt row costs as much as a wrong password
		shared.WipeByteArray(deriveKey(pw, placeholderSalt, h.params))
		return false
	}

	got := deriveKey(pw, salt, params)
	defer shared.WipeByteArray(got)

	return subtle.ConstantTimeCompare(got, want) == 1
}

// placeholderSalt is used when a stored hash cannot be decoded.
var placeholderSalt = []byte("gophauth-unusable-hash")

var deriveKey = func(password, salt []byte, p Argon2Params) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

func decode(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, errors.New("unrecognized hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("parse version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("parse params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode key: %w", err)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	if err := p.validate(); err != nil {
		return p, nil, nil, err
	}

	return p, salt, key, nil
}
