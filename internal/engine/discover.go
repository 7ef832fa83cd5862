package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/can1357/retro/internal/compiler"
)

// Discover walks root and returns every document path in lexical order.
// Hidden directories (leading dot) are not descended into.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsDocument(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// IsDocument reports whether path has a recognised document extension.
func IsDocument(path string) bool {
	_, ok := compiler.FormatOf(path)
	return ok
}
