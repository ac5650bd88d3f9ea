// Package paths provides deterministic input-to-output path mapping
// functions for pipeline runs.
package paths

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Filename returns the final path component of a filesystem path or URL.
// Query strings and fragments of URLs are not part of the result.
func Filename(inpath string) string {
	if strings.Contains(inpath, "://") {
		if u, err := url.Parse(inpath); err == nil {
			return path.Base(u.Path)
		}
	}
	return filepath.Base(inpath)
}

// JoinOutdirWithExt returns a path function that keeps each input's
// filename, replaces its extension with ext, and places it in outdir.
// The leading dot on ext is optional.
func JoinOutdirWithExt(outdir, ext string) func(inpath string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return func(inpath string) string {
		name := Filename(inpath)
		stem := strings.TrimSuffix(name, path.Ext(name))
		return filepath.Join(outdir, stem+ext)
	}
}

// ReplaceDir returns a path function that moves each input path from indir
// to outdir, keeping the path relative to indir intact. Inputs outside
// indir keep only their filename.
func ReplaceDir(indir, outdir string) func(inpath string) string {
	return func(inpath string) string {
		rel, err := filepath.Rel(indir, inpath)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = Filename(inpath)
		}
		return filepath.Join(outdir, rel)
	}
}
