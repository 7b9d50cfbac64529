package filetypes

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"courseware/internal/domain/models/library"

	"gopkg.in/yaml.v3"
)

//go:embed config/filetypes.yaml
var configFiles embed.FS

// Registry maps file name extensions to library file types
type Registry struct {
	byExt map[string]library.FileType
	mu    sync.RWMutex
}

// NewRegistry creates a registry loaded from the embedded extension table
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/filetypes.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read filetypes.yaml: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from a YAML document of file type -> extensions
func Parse(data []byte) (*Registry, error) {
	var table map[library.FileType][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file type table: %w", err)
	}

	r := &Registry{byExt: make(map[string]library.FileType)}
	for ft, exts := range table {
		if !ft.Valid() {
			return nil, fmt.Errorf("unknown file type in table: %q", ft)
		}
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if prev, ok := r.byExt[ext]; ok && prev != ft {
				return nil, fmt.Errorf("extension %q mapped to both %s and %s", ext, prev, ft)
			}
			r.byExt[ext] = ft
		}
	}
	return r, nil
}

// Detect returns the file type for a file name, or "other" if the extension is unknown
func (r *Registry) Detect(name string) library.FileType {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return library.FileTypeOther
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if ft, ok := r.byExt[ext]; ok {
		return ft
	}
	return library.FileTypeOther
}

// Extensions returns the extensions registered for a file type
func (r *Registry) Extensions(ft library.FileType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exts []string
	for ext, t := range r.byExt {
		if t == ft {
			exts = append(exts, ext)
		}
	}
	return exts
}
