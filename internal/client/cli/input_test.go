package cli

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecret_Piped(t *testing.T) {
	var out bytes.Buffer

	got, err := readSecret(strings.NewReader("s3cret\r\nrest"), &out, "Password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Equal(t, "Password: ", out.String())
}

func TestReadSecret_NoTrailingNewline(t *testing.T) {
	got, err := readSecret(strings.NewReader("last"), &bytes.Buffer{}, "Password")
	require.NoError(t, err)
	assert.Equal(t, "last", got)
}

func TestReadSecret_EmptyInput(t *testing.T) {
	_, err := readSecret(strings.NewReader(""), &bytes.Buffer{}, "Password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read password")
}

func TestReadSecret_Terminal(t *testing.T) {
	oldRead, oldTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = oldRead, oldTerm })

	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("hidden"), nil }

	var out bytes.Buffer
	got, err := readSecret(os.Stdin, &out, "Password")
	require.NoError(t, err)
	assert.Equal(t, "hidden", got)
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("tty gone") }
	_, err = readSecret(os.Stdin, &bytes.Buffer{}, "Password")
	assert.EqualError(t, err, "tty gone")
}
