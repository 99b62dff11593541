package memory

import (
	"sync"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// Source implements ports.GraphSource, ports.GraphSink and
// ports.SuggestionJournal over in-memory documents. Commits and journal
// writes are visible through Document and Log, which tests use to assert
// persistence behavior.
type Source struct {
	mu  sync.Mutex
	doc *domain.Document
	log *domain.SuggestionLog
}

// NewSource creates a Source serving the given document.
func NewSource(doc *domain.Document) *Source {
	return &Source{doc: doc}
}

// Load returns the current document.
func (s *Source) Load() (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, nil
}

// Store replaces the document with the committed graph.
func (s *Source) Store(doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	return nil
}

// LoadLog returns the persisted suggestion log, nil when none was stored.
func (s *Source) LoadLog() (*domain.SuggestionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log, nil
}

// StoreLog persists the suggestion log.
func (s *Source) StoreLog(log *domain.SuggestionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
	return nil
}

// Document returns the last stored document (or the initial one).
func (s *Source) Document() *domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Log returns the last stored suggestion log.
func (s *Source) Log() *domain.SuggestionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}
