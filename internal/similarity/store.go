package similarity

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/clauserisk/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// ErrNoTemplate is returned when no template exists for a contract type
var ErrNoTemplate = errors.New("no standard template")

// TemplateStore supplies the standard clauses for a contract type
type TemplateStore interface {
	Standards(contractType model.ContractType) ([]string, error)
}

// EmbeddedStore serves the templates compiled into the binary
type EmbeddedStore struct {
	templates map[model.ContractType][]string
}

// NewEmbeddedStore parses the embedded template document
func NewEmbeddedStore() (*EmbeddedStore, error) {
	var doc struct {
		Templates map[string][]string `yaml:"templates"`
	}
	if err := yaml.Unmarshal(embeddedTemplates, &doc); err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}

	store := &EmbeddedStore{templates: make(map[model.ContractType][]string, len(doc.Templates))}
	for ct, clauses := range doc.Templates {
		store.templates[model.ContractType(ct)] = clauses
	}
	return store, nil
}

// Standards returns the standard clauses for a contract type
func (s *EmbeddedStore) Standards(contractType model.ContractType) ([]string, error) {
	clauses, ok := s.templates[contractType]
	if !ok || len(clauses) == 0 {
		return nil, fmt.Errorf("%s: %w", contractType, ErrNoTemplate)
	}
	return clauses, nil
}

// DirStore reads <type>_template.json files of the form {"clauses": [...]}
type DirStore struct {
	dir string
}

// NewDirStore creates a store rooted at dir
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Standards returns the standard clauses for a contract type
func (s *DirStore) Standards(contractType model.ContractType) ([]string, error) {
	path := filepath.Join(s.dir, string(contractType)+"_template.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", contractType, ErrNoTemplate)
		}
		return nil, fmt.Errorf("read template: %w", err)
	}

	var doc struct {
		Clauses []string `json:"clauses"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if len(doc.Clauses) == 0 {
		return nil, fmt.Errorf("%s: %w", contractType, ErrNoTemplate)
	}

	return doc.Clauses, nil
}
