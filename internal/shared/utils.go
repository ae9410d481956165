// Package shared provides utility functions for working with random
// material and secure memory wiping.
package shared

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// MakeRandBytes returns size bytes read from crypto/rand.
func MakeRandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MakeRandHexString generates a random hexadecimal string of the given size.
// The resulting string is twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b, err := MakeRandBytes(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandURLString generates size random bytes and encodes them as
// unpadded base64url, suitable for bearer tokens carried in URLs, headers
// and JSON bodies.
//
// Example:
//
//	s, err := MakeRandURLString(32) // 256 bits, 43 characters
func MakeRandURLString(size int) (string, error) {
	b, err := MakeRandBytes(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as passwords or derived
// keys from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
