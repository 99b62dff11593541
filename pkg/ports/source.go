package ports

import "github.com/VinayDangodra28/botbuddy/pkg/domain"

// GraphSource loads a flow definition document (branches, interruptible
// intents, metadata). The graph store reads it once at construction; sources
// that support it may also persist the committed graph back.
type GraphSource interface {
	Load() (*domain.Document, error)
}

// GraphSink is implemented by sources that can persist the committed graph
// after a suggestion batch is applied.
type GraphSink interface {
	Store(doc *domain.Document) error
}

// SuggestionJournal persists the pending suggestion log across restarts.
// The in-memory log in the graph store is authoritative; the journal is
// write-behind.
type SuggestionJournal interface {
	LoadLog() (*domain.SuggestionLog, error)
	StoreLog(log *domain.SuggestionLog) error
}
