package walker

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.pdf"), "x")
	touch(t, filepath.Join(root, "a.PDF"), "x")
	touch(t, filepath.Join(root, "notes.txt"), "x")
	touch(t, filepath.Join(root, "sub", "c.pdf"), "x")
	touch(t, filepath.Join(root, ".git", "d.pdf"), "x")
	touch(t, filepath.Join(root, "node_modules", "e.pdf"), "x")
	touch(t, filepath.Join(root, "empty.pdf"), "")

	files, problems := Collect([]string{root}, map[string]bool{"pdf": true})

	want := []string{
		filepath.Join(root, "a.PDF"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.pdf"),
	}
	if len(files) != len(want) {
		t.Fatalf("got %d files (%v), want %d", len(files), files, len(want))
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, f.Path, want[i])
		}
	}
	if len(problems) != 1 || problems[0].Path != filepath.Join(root, "empty.pdf") {
		t.Errorf("problems = %v, want the empty file only", problems)
	}
}

func TestCollectExplicitFilesAndMissing(t *testing.T) {
	root := t.TempDir()
	explicit := filepath.Join(root, "report.bin")
	touch(t, explicit, "x")
	missing := filepath.Join(root, "missing.pdf")

	files, problems := Collect([]string{explicit, missing, explicit}, map[string]bool{"pdf": true})
	if len(files) != 1 || files[0].Path != explicit {
		t.Errorf("files = %v, want the explicit file once", files)
	}
	if len(problems) != 1 || problems[0].Path != missing {
		t.Errorf("problems = %v, want the missing file", problems)
	}
}
