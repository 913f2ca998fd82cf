package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo holds metadata about a discovered document.
type FileInfo struct {
	Path string
	Size int64
}

// Problem is an argument that could not be turned into a document.
type Problem struct {
	Path string
	Err  error
}

// defaultIgnores are directory names never descended into.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".pdfrag",
}

// Collect expands the given paths into a sorted, de-duplicated list of
// documents. Directories are walked recursively and only files whose
// extension (case-insensitive, without dot) is in exts are kept; files named
// explicitly are kept whatever their extension. Paths are made absolute.
func Collect(paths []string, exts map[string]bool) ([]FileInfo, []Problem) {
	seen := make(map[string]bool)
	var files []FileInfo
	var problems []Problem

	add := func(path string, size int64) {
		if seen[path] {
			return
		}
		seen[path] = true
		files = append(files, FileInfo{Path: path, Size: size})
	}

	for _, arg := range paths {
		abs, err := filepath.Abs(arg)
		if err != nil {
			problems = append(problems, Problem{Path: arg, Err: err})
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			problems = append(problems, Problem{Path: abs, Err: err})
			continue
		}
		if !info.IsDir() {
			add(abs, info.Size())
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				problems = append(problems, Problem{Path: path, Err: err})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != abs && ignored(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			// Skip symlinks.
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !exts[ext] {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				problems = append(problems, Problem{Path: path, Err: err})
				return nil
			}
			if fi.Size() == 0 {
				problems = append(problems, Problem{Path: path, Err: fmt.Errorf("empty file")})
				return nil
			}
			add(path, fi.Size())
			return nil
		})
		if err != nil {
			problems = append(problems, Problem{Path: abs, Err: err})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, problems
}

// ignored reports whether a directory should be skipped: hidden directories
// and well-known dependency or VCS folders.
func ignored(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	for _, p := range defaultIgnores {
		if name == p {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}
