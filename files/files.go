// Package files locates input files for pipeline runs.
package files

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// ImageExtensions are the file extensions FindImages searches for.
var ImageExtensions = []string{"jpeg", "jpg", "png", "bmp", "gif"}

// FindWithExtensions returns the paths of all files under searchDir whose
// extension matches one of extensions, case-insensitively. The leading dot
// on each extension is optional.
func FindWithExtensions(searchDir string, extensions []string) ([]string, error) {
	want := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		want[strings.ToLower(ext)] = struct{}{}
	}

	var found []string
	err := filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := want[strings.ToLower(filepath.Ext(path))]; ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindImages returns the paths of all image files under searchDir.
func FindImages(searchDir string) ([]string, error) {
	return FindWithExtensions(searchDir, ImageExtensions)
}
