package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bull/oncodoc/internal/markdown"
)

// LocalDir reads reports from a directory tree.
type LocalDir struct {
	root string
	conv *markdown.Converter
}

// NewLocalDir creates a source rooted at dir.
func NewLocalDir(dir string) (*LocalDir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open report directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open report directory: %s is not a directory", abs)
	}
	return &LocalDir{root: abs, conv: markdown.NewConverter()}, nil
}

// Name implements Source.
func (d *LocalDir) Name() string { return "dir:" + d.root }

// Root returns the absolute directory path.
func (d *LocalDir) Root() string { return d.root }

// List implements Source. Hidden files and directories are skipped.
func (d *LocalDir) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if p != d.root && len(name) > 0 && name[0] == '.' {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !Supported(name) {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Fetch implements Source.
func (d *LocalDir) Fetch(ctx context.Context, relPath string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(d.root, filepath.FromSlash(relPath))
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	text, sections, err := decode(d.conv, relPath, data)
	if err != nil {
		return nil, err
	}
	return &Report{
		Path:     relPath,
		Location: full,
		Text:     text,
		Revision: strconv.FormatInt(info.ModTime().UnixNano(), 36),
		ModTime:  info.ModTime(),
		Sections: sections,
	}, nil
}
