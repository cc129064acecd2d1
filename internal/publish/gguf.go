package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrConvertScriptNotFound means llama.cpp has no HF-to-GGUF converter.
	ErrConvertScriptNotFound = errors.New("convert script not found")

	// ErrQuantizeNotFound means llama.cpp has no built llama-quantize.
	ErrQuantizeNotFound = errors.New("llama-quantize not found")
)

// convertScripts are tried in order; convert.py is the older name.
var convertScripts = []string{"convert_hf_to_gguf.py", "convert.py"}

// quantizeBinaries are tried in order, relative to the llama.cpp dir.
var quantizeBinaries = [][]string{
	{"build", "bin", "llama-quantize.exe"},
	{"build", "bin", "Release", "llama-quantize.exe"},
	{"build", "bin", "llama-quantize"},
}

// FindConvertScript locates the converter in a llama.cpp checkout.
func FindConvertScript(llamaDir string) (string, error) {
	if _, err := os.Stat(llamaDir); err != nil {
		return "", fmt.Errorf("llama.cpp not found at %s: %w", llamaDir, err)
	}
	for _, name := range convertScripts {
		p := filepath.Join(llamaDir, name)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrConvertScriptNotFound, llamaDir)
}

// FindQuantizeBinary locates llama-quantize in a llama.cpp build.
func FindQuantizeBinary(llamaDir string) (string, error) {
	var last string
	for _, parts := range quantizeBinaries {
		last = filepath.Join(append([]string{llamaDir}, parts...)...)
		if fileExists(last) {
			return last, nil
		}
	}
	return "", fmt.Errorf("%w at %s", ErrQuantizeNotFound, last)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
