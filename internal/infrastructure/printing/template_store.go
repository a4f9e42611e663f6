package printing

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/erp/docprint/internal/domain/printing"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names
const (
	TemplateDocument = "document"
	TemplateReceipt  = "receipt"
)

// TemplateNameFor returns the template used for the given paper size
func TemplateNameFor(paper printing.PaperSize) string {
	if paper.IsReceipt() {
		return TemplateReceipt
	}
	return TemplateDocument
}

// TemplateStore holds document template sources.
// Templates in ExternalDir override the embedded ones with the same file name.
type TemplateStore struct {
	externalDir string
	templates   map[string]string
	mu          sync.RWMutex
}

// TemplateStoreConfig configures the template store
type TemplateStoreConfig struct {
	// ExternalDir is the directory to load templates from.
	// If empty or a file is missing, embedded templates are used.
	ExternalDir string
}

// NewTemplateStore creates a new template store
func NewTemplateStore(config *TemplateStoreConfig) (*TemplateStore, error) {
	store := &TemplateStore{}
	if config != nil {
		store.externalDir = config.ExternalDir
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Reload reads all templates again
func (s *TemplateStore) Reload() error {
	templates := make(map[string]string, 2)
	for _, name := range []string{TemplateDocument, TemplateReceipt} {
		content, err := s.load(name + ".html")
		if err != nil {
			return fmt.Errorf("failed to load template %s: %w", name, err)
		}
		templates[name] = content
	}

	s.mu.Lock()
	s.templates = templates
	s.mu.Unlock()
	return nil
}

// Content returns the source of a template
func (s *TemplateStore) Content(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	return content, nil
}

func (s *TemplateStore) load(filename string) (string, error) {
	if s.externalDir != "" {
		if content, err := os.ReadFile(filepath.Join(s.externalDir, filename)); err == nil {
			return string(content), nil
		}
		// Fall through to embedded if external not found
	}
	content, err := templateFS.ReadFile("templates/" + filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
