package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchPathsOptional(t *testing.T) {
	tmpDir := t.TempDir()

	file1 := filepath.Join(tmpDir, "file1.yaml")
	file2 := filepath.Join(tmpDir, "file2.yaml")
	if err := os.WriteFile(file2, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"skips missing files", []string{file1, file2}, file2},
		{"skips directories", []string{tmpDir, file2}, file2},
		{"nothing found", []string{file1, tmpDir}, ""},
		{"empty list", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchPathsOptional(tt.paths); got != tt.want {
				t.Errorf("SearchPathsOptional() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	paths := DefaultConfigPaths("linkshare.yaml")

	if len(paths) != 3 {
		t.Fatalf("Expected 3 paths, got %d", len(paths))
	}
	if paths[0] != "linkshare.yaml" {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	if !strings.HasPrefix(paths[2], SystemConfigDir) {
		t.Errorf("Expected system path last, got %s", paths[2])
	}
}

func TestFindConfigOptional(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	if got := FindConfigOptional("linkshare-test.yaml"); got != "" {
		t.Errorf("Expected no config, got %s", got)
	}

	os.Mkdir("config", 0755)
	os.WriteFile(filepath.Join("config", "linkshare-test.yaml"), []byte("x"), 0644)

	if got := FindConfigOptional("linkshare-test.yaml"); got != filepath.Join("config", "linkshare-test.yaml") {
		t.Errorf("Expected config/linkshare-test.yaml, got %q", got)
	}
}

func TestEnsureParentDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "app.log")

	if err := EnsureParentDir(target, 0750); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Dir(target))
	if err != nil || !info.IsDir() {
		t.Errorf("Expected parent directory to exist: %v", err)
	}
}
