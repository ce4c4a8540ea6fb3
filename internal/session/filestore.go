package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gamechat/pkg/interfaces"
)

// Session tokens are restricted to the characters PHP emits for session IDs.
// Anything else is rejected before touching the filesystem so a hostile
// token can never address a path outside the session directory.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9,-]+$`)

// FileStore reads session records from the web tier's session directory,
// one file per token named sess_<token>. The store is read-only; records
// are created and refreshed exclusively by the web tier.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed session store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Read returns the raw session payload for a token. Missing files and
// malformed tokens both report interfaces.ErrSessionNotFound.
func (s *FileStore) Read(token string) ([]byte, error) {
	if token == "" || !tokenPattern.MatchString(token) {
		return nil, interfaces.ErrSessionNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.dir, "sess_"+token))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	return data, nil
}
