package paths

import (
	"path/filepath"
	"testing"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		inpath string
		want   string
	}{
		{"/data/images/cat.jpg", "cat.jpg"},
		{"cat.jpg", "cat.jpg"},
		{"https://example.com/images/cat.jpg", "cat.jpg"},
		{"https://example.com/images/cat.jpg?size=large#top", "cat.jpg"},
		{"https://example.com/cat", "cat"},
	}
	for _, tt := range tests {
		if got := Filename(tt.inpath); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.inpath, got, tt.want)
		}
	}
}

func TestJoinOutdirWithExt(t *testing.T) {
	tests := []struct {
		name   string
		outdir string
		ext    string
		inpath string
		want   string
	}{
		{"local file", "out", "png", "/in/cat.jpg", filepath.Join("out", "cat.png")},
		{"dotted extension", "out", ".png", "/in/cat.jpg", filepath.Join("out", "cat.png")},
		{"url input", "out", "png", "https://example.com/a/dog.jpeg", filepath.Join("out", "dog.png")},
		{"no extension on input", "out", "png", "/in/cat", filepath.Join("out", "cat.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pathFunc := JoinOutdirWithExt(tt.outdir, tt.ext)
			if got := pathFunc(tt.inpath); got != tt.want {
				t.Errorf("pathFunc(%q) = %q, want %q", tt.inpath, got, tt.want)
			}
		})
	}
}

func TestReplaceDir(t *testing.T) {
	pathFunc := ReplaceDir("/data/raw", "/data/processed")

	if got, want := pathFunc("/data/raw/a/b.png"), filepath.Join("/data/processed", "a", "b.png"); got != want {
		t.Errorf("pathFunc inside indir = %q, want %q", got, want)
	}
	if got, want := pathFunc("/elsewhere/c.png"), filepath.Join("/data/processed", "c.png"); got != want {
		t.Errorf("pathFunc outside indir = %q, want %q", got, want)
	}
}
