// Package flowgraph holds the committed dialogue graph and the pending
// suggestion log. The committed graph is shared by every active session;
// mutations only ever happen through the two-phase suggestion protocol:
// propose (pure append) then apply (transactional per operation).
package flowgraph

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/VinayDangodra28/botbuddy/internal/logging"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

// graph is one immutable snapshot of the committed state. Readers hold a
// snapshot pointer; ApplySuggestions builds the next snapshot on a deep copy
// and swaps it in, so an in-flight turn never observes a half-applied batch.
type graph struct {
	branches map[string]*domain.Branch
	intents  map[string]*domain.InterruptibleIntent
	entry    string
	metadata map[string]any
}

// Store owns the committed branch graph and the pending suggestion log.
// Reads are safe from any number of sessions concurrently; the commit path
// (ApplySuggestions) is the single writer.
type Store struct {
	mu      sync.RWMutex
	current *graph

	logMu   sync.Mutex
	pending []domain.SuggestionOperation

	journal ports.SuggestionJournal
	sink    ports.GraphSink
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a structured logger for commit and proposal events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal persists the pending suggestion log after every change.
func WithJournal(j ports.SuggestionJournal) Option {
	return func(s *Store) { s.journal = j }
}

// WithSink persists the committed graph after a successful apply.
func WithSink(sink ports.GraphSink) Option {
	return func(s *Store) { s.sink = sink }
}

// withClock overrides the timestamp source (tests).
func withClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New builds a Store from a flow document.
func New(doc *domain.Document, opts ...Option) *Store {
	s := &Store{
		current: snapshotFromDocument(doc),
		logger:  logging.NewNop(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal != nil {
		if log, err := s.journal.LoadLog(); err != nil {
			s.logger.Warn("failed to load suggestion journal, starting empty", "err", err)
		} else if log != nil {
			s.pending = append(s.pending, log.Pending...)
		}
	}
	return s
}

func snapshotFromDocument(doc *domain.Document) *graph {
	g := &graph{
		branches: make(map[string]*domain.Branch),
		intents:  make(map[string]*domain.InterruptibleIntent),
		entry:    "greeting",
	}
	if doc == nil {
		return g
	}
	for id, b := range doc.Branches {
		clone := b.Clone()
		clone.ID = id
		g.branches[id] = clone
	}
	for name, in := range doc.Intents {
		cp := *in
		cp.Name = name
		g.intents[name] = &cp
	}
	if doc.EntryBranch != "" {
		g.entry = doc.EntryBranch
	}
	g.metadata = doc.Metadata
	return g
}

// clone deep-copies a snapshot for the apply/preview passes.
func (g *graph) clone() *graph {
	out := &graph{
		branches: make(map[string]*domain.Branch, len(g.branches)),
		intents:  g.intents,
		entry:    g.entry,
		metadata: g.metadata,
	}
	for id, b := range g.branches {
		out.branches[id] = b.Clone()
	}
	return out
}

// snapshot returns the current committed graph for lock-free reads.
func (s *Store) snapshot() *graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// GetBranch returns a copy of the committed branch, or nil if absent.
func (s *Store) GetBranch(id string) *domain.Branch {
	return s.snapshot().branches[id].Clone()
}

// BranchByIntent returns the id of the first branch carrying the intent, or
// "" if none does. Lookup order is deterministic (sorted ids).
func (s *Store) BranchByIntent(intent string) string {
	g := s.snapshot()
	for _, id := range sortedIDs(g.branches) {
		if g.branches[id].Intent == intent {
			return id
		}
	}
	return ""
}

// ListBranches returns all committed branch ids, sorted.
func (s *Store) ListBranches() []string {
	return sortedIDs(s.snapshot().branches)
}

// EntryBranch returns the id of the branch new sessions start on.
func (s *Store) EntryBranch() string {
	return s.snapshot().entry
}

// Intent returns the interruptible intent by name, or nil.
func (s *Store) Intent(name string) *domain.InterruptibleIntent {
	in := s.snapshot().intents[name]
	if in == nil {
		return nil
	}
	cp := *in
	return &cp
}

// Intents returns the full interruptible-intent table keyed by name.
func (s *Store) Intents() map[string]*domain.InterruptibleIntent {
	g := s.snapshot()
	out := make(map[string]*domain.InterruptibleIntent, len(g.intents))
	for name, in := range g.intents {
		cp := *in
		out[name] = &cp
	}
	return out
}

// Document exports the committed graph as a flow document.
func (s *Store) Document() *domain.Document {
	g := s.snapshot()
	doc := &domain.Document{
		Branches:    make(map[string]*domain.Branch, len(g.branches)),
		Intents:     make(map[string]*domain.InterruptibleIntent, len(g.intents)),
		EntryBranch: g.entry,
		Metadata:    g.metadata,
	}
	for id, b := range g.branches {
		doc.Branches[id] = b.Clone()
	}
	for name, in := range g.intents {
		cp := *in
		doc.Intents[name] = &cp
	}
	return doc
}

// ProposeCreate stages a branch creation. It fails (no log entry) when the
// id already exists in the committed graph.
func (s *Store) ProposeCreate(branch *domain.Branch, calledWhen []domain.CalledWhen) bool {
	if branch == nil || branch.ID == "" {
		return false
	}
	if s.snapshot().branches[branch.ID] != nil {
		s.logger.Debug("create proposal rejected, branch exists", "branch", branch.ID)
		return false
	}
	s.appendOp(domain.SuggestionOperation{
		Type:       domain.OpCreate,
		BranchID:   branch.ID,
		Branch:     branch.Clone(),
		CalledWhen: calledWhen,
	})
	return true
}

// ProposeUpdate stages a partial update. It fails when the target branch
// does not exist in the committed graph.
func (s *Store) ProposeUpdate(id string, fields *domain.BranchUpdate, calledWhen []domain.CalledWhen) bool {
	if id == "" || s.snapshot().branches[id] == nil {
		s.logger.Debug("update proposal rejected, branch missing", "branch", id)
		return false
	}
	s.appendOp(domain.SuggestionOperation{
		Type:       domain.OpUpdate,
		BranchID:   id,
		Fields:     fields,
		CalledWhen: calledWhen,
	})
	return true
}

// ProposeDelete stages a deletion. It fails when the branch does not exist.
func (s *Store) ProposeDelete(id string) bool {
	if id == "" || s.snapshot().branches[id] == nil {
		s.logger.Debug("delete proposal rejected, branch missing", "branch", id)
		return false
	}
	s.appendOp(domain.SuggestionOperation{
		Type:     domain.OpDelete,
		BranchID: id,
	})
	return true
}

func (s *Store) appendOp(op domain.SuggestionOperation) {
	op.Timestamp = s.clock()

	s.logMu.Lock()
	s.pending = append(s.pending, op)
	s.persistLogLocked()
	s.logMu.Unlock()

	s.logger.Info("suggestion staged", "op", string(op.Type), "branch", op.BranchID)
}

// PendingOperations returns a copy of the pending suggestion log.
func (s *Store) PendingOperations() []domain.SuggestionOperation {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return append([]domain.SuggestionOperation(nil), s.pending...)
}

// ClearSuggestions discards the pending log without applying it.
func (s *Store) ClearSuggestions() {
	s.logMu.Lock()
	n := len(s.pending)
	s.pending = nil
	s.persistLogLocked()
	s.logMu.Unlock()

	s.logger.Info("suggestion log cleared", "discarded", n)
}

// persistLogLocked writes the log through the journal. Caller holds logMu.
func (s *Store) persistLogLocked() {
	if s.journal == nil {
		return
	}
	log := &domain.SuggestionLog{
		Pending:   append([]domain.SuggestionOperation(nil), s.pending...),
		UpdatedAt: s.clock(),
	}
	if err := s.journal.StoreLog(log); err != nil {
		s.logger.Warn("failed to persist suggestion journal", "err", err)
	}
}

func sortedIDs(m map[string]*domain.Branch) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
