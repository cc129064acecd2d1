package publish

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// AdapterConfigFile marks the directory holding a PEFT adapter.
const AdapterConfigFile = "adapter_config.json"

// ErrAdapterNotFound means the download held no adapter_config.json.
var ErrAdapterNotFound = errors.New("adapter_config.json not found")

// errFound stops the walk early.
var errFound = errors.New("found")

// FindAdapterDir returns the directory of the first adapter_config.json
// under root, walking in lexical order. The error lists the files that
// were found instead.
func FindAdapterDir(root string) (string, error) {
	var found string
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() == AdapterConfigFile {
			found = filepath.Dir(path)
			return errFound
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			files = append(files, rel)
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return "", fmt.Errorf("failed to scan %s: %w", root, err)
	}

	listing := "(no files)"
	if len(files) > 0 {
		listing = "\n  " + strings.Join(files, "\n  ")
	}
	return "", fmt.Errorf("%w in %s. Directory structure: %s", ErrAdapterNotFound, root, listing)
}
