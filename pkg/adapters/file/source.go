package file

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// Source implements ports.GraphSource and ports.GraphSink over a YAML flow
// definition file. Store writes atomically so an interrupted commit never
// corrupts the flow file.
type Source struct {
	Path string
}

// NewSource creates a Source reading from and writing to path.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Load parses the flow document.
func (s *Source) Load() (*domain.Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var doc domain.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse flow file %s: %w", s.Path, err)
	}
	if len(doc.Branches) == 0 {
		return nil, fmt.Errorf("flow file %s defines no branches", s.Path)
	}
	return &doc, nil
}

// Store persists the committed graph back to the flow file.
func (s *Source) Store(doc *domain.Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal flow document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("failed to ensure flow directory: %w", err)
	}
	return writeAtomic(s.Path, data)
}

// Journal implements ports.SuggestionJournal over a YAML file, so pending
// suggestions survive restarts until someone reviews them.
type Journal struct {
	Path string
}

// NewJournal creates a Journal at path.
func NewJournal(path string) *Journal {
	return &Journal{Path: path}
}

// LoadLog reads the persisted suggestion log. A missing file means an empty
// log, not an error.
func (j *Journal) LoadLog() (*domain.SuggestionLog, error) {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read suggestion journal: %w", err)
	}

	var log domain.SuggestionLog
	if err := yaml.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion journal %s: %w", j.Path, err)
	}
	return &log, nil
}

// StoreLog writes the suggestion log atomically.
func (j *Journal) StoreLog(log *domain.SuggestionLog) error {
	data, err := yaml.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.Path), 0755); err != nil {
		return fmt.Errorf("failed to ensure journal directory: %w", err)
	}
	return writeAtomic(j.Path, data)
}
