package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader resolves profile names against a list of search paths, caching
// parsed definitions. A profile "oxygen" is looked up as oxygen.json,
// then oxygen.yaml, in each search path in order.
type Loader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewLoader(searchPaths []string) (*Loader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

func (l *Loader) Load(name string) (*Definition, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*Definition), nil
	}

	data, path, err := l.find(name)
	if err != nil {
		return nil, err
	}

	def, err := l.parse(data, path)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	l.cache.Store(name, def)
	return def, nil
}

func (l *Loader) find(name string) ([]byte, string, error) {
	for _, searchPath := range l.searchPaths {
		for _, ext := range []string{".json", ".yaml", ".yml"} {
			fullPath := filepath.Join(searchPath, name+ext)
			data, err := os.ReadFile(fullPath)
			if err == nil {
				return data, fullPath, nil
			}
		}
	}
	return nil, "", fmt.Errorf("profile not found: %s (searched in: %v)", name, l.searchPaths)
}

func (l *Loader) parse(data []byte, path string) (*Definition, error) {
	ext := filepath.Ext(path)
	if ext == ".yaml" || ext == ".yml" {
		// Re-encode as JSON so the schema validator sees one shape.
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		jsonData, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("cannot re-encode YAML: %w", err)
		}
		data = jsonData
	}

	if err := l.validator.ValidateJSON(data); err != nil {
		return nil, err
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &def, nil
}

// ClearCache drops every cached definition.
func (l *Loader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}
