// Package source lists and fetches raw report text from places reports land:
// a local inbox directory or a directory in a GitHub repository.
package source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bull/oncodoc/internal/markdown"
)

// ErrUnsupportedFile is returned by Fetch for files that are not reports.
var ErrUnsupportedFile = errors.New("unsupported report file")

// Report is one fetched report file.
type Report struct {
	Path     string    // Relative path within the source
	Location string    // Absolute path or URL, used as the document source
	Text     string    // Plain text; markdown is converted
	Revision string    // Git blob SHA or file modification stamp
	ModTime  time.Time // Zero when unknown
	Sections []markdown.Section
}

// Source enumerates report files.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// List returns relative paths of all report files.
	List(ctx context.Context) ([]string, error)
	// Fetch reads one report by its relative path.
	Fetch(ctx context.Context, relPath string) (*Report, error)
}

var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
}

var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// Supported reports whether name has a report file extension.
func Supported(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return textExtensions[ext] || markdownExtensions[ext]
}

// decode turns file bytes into report text, converting markdown.
func decode(conv *markdown.Converter, name string, data []byte) (string, []markdown.Section, error) {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case markdownExtensions[ext]:
		doc, err := conv.Convert(data)
		if err != nil {
			return "", nil, fmt.Errorf("convert %s: %w", name, err)
		}
		return doc.Text, doc.Sections, nil
	case textExtensions[ext]:
		return string(data), nil, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}
}
