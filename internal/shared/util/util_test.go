package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "dot", in: ".", want: ""},
		{name: "leading dot slash", in: "./pkg/mod.py", want: "pkg/mod.py"},
		{name: "backslashes", in: `pkg\sub\mod.py`, want: "pkg/sub/mod.py"},
		{name: "redundant segments", in: "pkg//sub/../mod.py", want: "pkg/mod.py"},
		{name: "spaces", in: "  a.py ", want: "a.py"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePath(tc.in); got != tc.want {
				t.Fatalf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRelPath(t *testing.T) {
	root := filepath.Join("srv", "repo")

	if got := RelPath(root, filepath.Join(root, "pkg", "mod.py")); got != "pkg/mod.py" {
		t.Errorf("expected pkg/mod.py, got %q", got)
	}
	if got := RelPath(root, filepath.Join("elsewhere", "x.py")); got != "elsewhere/x.py" {
		t.Errorf("expected path outside root to be kept, got %q", got)
	}
}

func TestEnsureParentDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nested", "deeper", "index.db")

	if err := EnsureParentDir(file); err != nil {
		t.Fatalf("EnsureParentDir failed: %v", err)
	}
	info, err := os.Stat(filepath.Dir(file))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected parent directory to exist, err=%v", err)
	}
	if err := EnsureParentDir("plain.db"); err != nil {
		t.Errorf("bare file name must be a no-op, got %v", err)
	}
}
