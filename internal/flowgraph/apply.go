package flowgraph

import (
	"fmt"
	"sort"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// PreviewEffect simulates applying the whole pending log against a disposable
// copy of the committed graph. The committed state and the log are untouched.
func (s *Store) PreviewEffect() *domain.Preview {
	s.logMu.Lock()
	ops := append([]domain.SuggestionOperation(nil), s.pending...)
	s.logMu.Unlock()

	work := s.snapshot().clone()
	preview := &domain.Preview{}

	for i, op := range ops {
		if err := applyOne(work, op); err != nil {
			preview.Conflicts = append(preview.Conflicts, fmt.Sprintf("op %d (%s %s): %v", i, op.Type, op.BranchID, err))
			continue
		}
		switch op.Type {
		case domain.OpCreate:
			preview.Creates = append(preview.Creates, op.BranchID)
		case domain.OpUpdate:
			preview.Updates = append(preview.Updates, op.BranchID)
		case domain.OpDelete:
			preview.Deletes = append(preview.Deletes, op.BranchID)
		}
	}
	return preview
}

// ApplySuggestions commits pending operations by log index. A nil or empty
// indices slice commits the whole log. Each operation is isolated: a failure
// records an error and leaves that operation in the log, while the rest of
// the batch proceeds. On success the new snapshot replaces the committed
// graph atomically and is persisted through the sink if one is configured.
func (s *Store) ApplySuggestions(indices []int) *domain.ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logMu.Lock()
	defer s.logMu.Unlock()

	selected := indices
	if len(selected) == 0 {
		selected = make([]int, len(s.pending))
		for i := range s.pending {
			selected[i] = i
		}
	}

	result := &domain.ApplyResult{}
	work := s.current.clone()

	for _, idx := range selected {
		if idx < 0 || idx >= len(s.pending) {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("index %d out of range", idx))
			continue
		}
		op := s.pending[idx]
		if err := applyOne(work, op); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("op %d (%s %s): %v", idx, op.Type, op.BranchID, err))
			s.logger.Warn("suggestion apply failed", "index", idx, "op", string(op.Type), "branch", op.BranchID, "err", err)
			continue
		}
		result.Applied++
		result.AppliedIndices = append(result.AppliedIndices, idx)
	}

	if result.Applied > 0 {
		s.current = work
		s.removeIndicesLocked(result.AppliedIndices)
		s.persistLogLocked()

		if s.sink != nil {
			if err := s.sink.Store(documentFromSnapshot(work)); err != nil {
				s.logger.Warn("failed to persist committed graph", "err", err)
			}
		}
	}

	s.logger.Info("suggestions applied", "applied", result.Applied, "failed", result.Failed, "remaining", len(s.pending))
	return result
}

// removeIndicesLocked drops applied entries from the pending log. Indices are
// removed in descending order so earlier removals do not shift later ones.
// Caller holds logMu.
func (s *Store) removeIndicesLocked(indices []int) {
	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, idx := range sorted {
		if idx < 0 || idx >= len(s.pending) {
			continue
		}
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	}
}

// applyOne executes a single operation against a working snapshot. It
// validates preconditions against that snapshot, so earlier operations in
// the same batch are visible to later ones.
func applyOne(g *graph, op domain.SuggestionOperation) error {
	switch op.Type {
	case domain.OpCreate:
		return applyCreate(g, op)
	case domain.OpUpdate:
		return applyUpdate(g, op)
	case domain.OpDelete:
		return applyDelete(g, op)
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

func applyCreate(g *graph, op domain.SuggestionOperation) error {
	if op.Branch == nil {
		return fmt.Errorf("create carries no branch definition")
	}
	if g.branches[op.BranchID] != nil {
		return fmt.Errorf("branch %q already exists", op.BranchID)
	}
	branch := op.Branch.Clone()
	branch.ID = op.BranchID
	g.branches[op.BranchID] = branch
	rewire(g, op.BranchID, op.CalledWhen)
	return nil
}

func applyUpdate(g *graph, op domain.SuggestionOperation) error {
	target := g.branches[op.BranchID]
	if target == nil {
		return fmt.Errorf("branch %q: %w", op.BranchID, domain.ErrBranchNotFound)
	}
	if f := op.Fields; f != nil {
		if f.Intent != nil {
			target.Intent = *f.Intent
		}
		if f.Prompt != nil {
			target.Prompt = *f.Prompt
		}
		if f.ExpectedResponses != nil {
			if target.ExpectedResponses == nil {
				target.ExpectedResponses = make(map[string]domain.ResponseRule)
			}
			for key, rule := range f.ExpectedResponses {
				if rule.Keywords != nil {
					rule.Keywords = append([]string(nil), rule.Keywords...)
				}
				target.ExpectedResponses[key] = rule
			}
		}
		if f.TerminalAction != nil {
			target.TerminalAction = *f.TerminalAction
		}
	}
	rewire(g, op.BranchID, op.CalledWhen)
	return nil
}

func applyDelete(g *graph, op domain.SuggestionOperation) error {
	if g.branches[op.BranchID] == nil {
		return fmt.Errorf("branch %q: %w", op.BranchID, domain.ErrBranchNotFound)
	}
	delete(g.branches, op.BranchID)

	// Scrub dangling transitions. A rule that pointed at the deleted branch
	// keeps its reply but no longer moves the conversation.
	for _, b := range g.branches {
		for key, rule := range b.ExpectedResponses {
			if rule.Next == op.BranchID {
				rule.Next = ""
				b.ExpectedResponses[key] = rule
			}
		}
	}
	return nil
}

// rewire installs called_when hooks: every branch whose intent matches
// PreviousIntent gets its PreviousResponse rule pointed at the target branch.
// A missing rule is created; an existing one keeps its reply unless the hook
// supplies its own.
func rewire(g *graph, targetID string, hooks []domain.CalledWhen) {
	for _, hook := range hooks {
		if hook.PreviousIntent == "" || hook.PreviousResponse == "" {
			continue
		}
		for _, b := range g.branches {
			if b.Intent != hook.PreviousIntent {
				continue
			}
			if b.ExpectedResponses == nil {
				b.ExpectedResponses = make(map[string]domain.ResponseRule)
			}
			rule := b.ExpectedResponses[hook.PreviousResponse]
			rule.Next = targetID
			if hook.Response != "" {
				rule.Response = hook.Response
			}
			b.ExpectedResponses[hook.PreviousResponse] = rule
		}
	}
}

func documentFromSnapshot(g *graph) *domain.Document {
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
