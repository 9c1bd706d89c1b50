package pdf

import (
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies an input file by its suffix.
type Kind int

const (
	Ignored Kind = iota
	Document
	Image
)

func (k Kind) String() string {
	switch k {
	case Document:
		return "document"
	case Image:
		return "image"
	default:
		return "ignored"
	}
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff"}

// Classify returns the kind of a file from its name. Matching is
// case-insensitive and looks at the suffix only.
func Classify(name string) Kind {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".pdf") {
		return Document
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return Image
		}
	}
	return Ignored
}

// SourceFile is one entry of the input folder.
type SourceFile struct {
	Path string
	Name string
	Kind Kind
}

// ListSources returns the files of dir in ascending filename order.
// Subdirectories are skipped; ignored files are included with Kind Ignored.
func ListSources(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ListError{Dir: dir, Err: err}
	}

	// os.ReadDir already sorts by filename.
	sources := make([]SourceFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sources = append(sources, SourceFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
			Kind: Classify(entry.Name()),
		})
	}
	return sources, nil
}
