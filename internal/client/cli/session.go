package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophauth/internal/filex"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

// defaultTokenFile is where login keeps the token pair between runs.
func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gophauth-tokens.json"
	}
	return filepath.Join(dir, "gophauth", "tokens.json")
}

func loadTokens(path string) (pb.TokenPair, error) {
	var t pb.TokenPair

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("token file %s: %w", path, err)
	}
	return t, nil
}

// saveTokens writes t readable by the owner only. An empty pair removes
// the file.
func saveTokens(path string, t pb.TokenPair) error {
	if t == (pb.TokenPair{}) {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return filex.WritePrivateFile(path, data)
}
