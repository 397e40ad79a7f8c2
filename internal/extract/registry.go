package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry holds all available extractors and picks one by file name.
type Registry struct {
	extractors []Extractor
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			NewTextExtractor(),
			NewPDFExtractor(),
			NewDOCXExtractor(),
			NewHTMLExtractor(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new extractor to the registry.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// FindExtractor returns the extractor for a file name.
func (r *Registry) FindExtractor(fileName string) (Extractor, error) {
	for _, e := range r.extractors {
		if e.CanExtract(fileName) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w for file: %s", ErrNoExtractor, fileName)
}

// Names lists the registered extractors.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	return names
}

func hasExt(fileName string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
