package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"3f2c-11aa", "3f2c-11aa"},
		{"../../etc/passwd", "etc_passwd"},
		{"a b  c", "a_b_c"},
		{"__..", "unknown"},
		{"session:2026/10/17", "session_2026_10_17"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := SanitizeFilename(strings.Repeat("a", 500))
	if len(long) != maxFilenameLen {
		t.Errorf("long name length = %d, want %d", len(long), maxFilenameLen)
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	for _, d := range []string{safeDir, unsafeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	link := filepath.Join(safeDir, "evil-symlink")
	if err := os.Symlink(unsafeDir, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safeDir, "a.json"), false},
		{"nested new file", filepath.Join(safeDir, "sub", "a.json"), false},
		{"dot dot", filepath.Join(safeDir, "..", "a.json"), true},
		{"through symlink", filepath.Join(link, "a.json"), true},
		{"sibling", filepath.Join(unsafeDir, "a.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%s) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveWithin(dir, "../escape", ".png")
	if err != nil {
		t.Fatalf("ResolveWithin: %v", err)
	}
	if want := filepath.Join(dir, "escape.png"); got != want {
		t.Errorf("ResolveWithin = %s, want %s", got, want)
	}
}
