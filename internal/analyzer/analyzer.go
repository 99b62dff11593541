package analyzer

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/internal/logging"
)

// MatchResult is the outcome of matching an utterance on a branch.
type MatchResult struct {
	Matched      bool
	ResponseType string

	// Response is the scripted reply template, empty when the rule
	// delegates to the generator.
	Response string

	// Next is the branch to transition to, empty to stay.
	Next string
}

// Analyzer matches utterances against branch rules using a swappable policy.
type Analyzer struct {
	graph  *flowgraph.Store
	tables *Tables
	logger *slog.Logger
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithTables replaces the default matching policy.
func WithTables(tables *Tables) Option {
	return func(a *Analyzer) {
		if tables != nil {
			a.tables = tables
		}
	}
}

// WithLogger sets a structured logger for match decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an Analyzer over the committed graph.
func New(graph *flowgraph.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		graph:  graph,
		tables: DefaultTables(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tables exposes the active matching policy (follow-up resolution reuses
// its typo table).
func (a *Analyzer) Tables() *Tables {
	return a.tables
}

// Match checks the utterance against the stage's expected responses.
// Keyword-tagged rules are scanned first with negation suppression, then the
// generic affirmative/negative vocabularies back the keyword-less rules, and
// finally stage-specific special cases are consulted before giving up.
// Wildcard rules are never matched here; they only apply to interruption
// follow-ups.
func (a *Analyzer) Match(utterance, stageID string) MatchResult {
	branch := a.graph.GetBranch(stageID)
	if branch == nil || len(branch.ExpectedResponses) == 0 {
		return MatchResult{}
	}
	lowered := strings.ToLower(utterance)

	types := make([]string, 0, len(branch.ExpectedResponses))
	for rt := range branch.ExpectedResponses {
		types = append(types, rt)
	}
	sort.Strings(types)

	// Keyword-tagged rules first; they always beat the generic vocabularies.
	for _, rt := range types {
		rule := branch.ExpectedResponses[rt]
		if !rule.HasKeywords() {
			continue
		}
		for _, keyword := range rule.Keywords {
			kw := strings.ToLower(keyword)
			if !strings.Contains(lowered, kw) {
				continue
			}
			if a.negated(lowered, kw) {
				a.logger.Debug("keyword negated", "stage", stageID, "keyword", keyword)
				continue
			}
			a.logger.Debug("keyword match", "stage", stageID, "type", rt, "keyword", keyword)
			return MatchResult{Matched: true, ResponseType: rt, Response: rule.Response, Next: rule.Next}
		}
	}

	// Generic vocabularies back only the keyword-less rules.
	for _, rt := range types {
		rule := branch.ExpectedResponses[rt]
		if rule.HasKeywords() || rule.IsWildcard() {
			continue
		}
		patterns, ok := a.tables.GenericPatterns[rt]
		if !ok {
			continue
		}
		for _, pattern := range patterns {
			if containsPhrase(lowered, pattern) {
				a.logger.Debug("generic match", "stage", stageID, "type", rt, "pattern", pattern)
				return MatchResult{Matched: true, ResponseType: rt, Response: rule.Response, Next: rule.Next}
			}
		}
	}

	// Stage-specific special cases, consulted before reporting no match.
	for _, sc := range a.tables.SpecialCases {
		if sc.Stage != stageID {
			continue
		}
		for _, phrase := range sc.Phrases {
			if !strings.Contains(lowered, phrase) {
				continue
			}
			rule, ok := branch.ExpectedResponses[sc.ResponseType]
			if !ok {
				continue
			}
			a.logger.Debug("special case match", "stage", stageID, "type", sc.ResponseType, "phrase", phrase)
			return MatchResult{Matched: true, ResponseType: sc.ResponseType, Response: rule.Response, Next: rule.Next}
		}
	}

	return MatchResult{}
}

// negated reports whether the keyword hit is actually a denial: a negation
// phrase appears in the utterance ahead of the keyword. The check is
// positional, not adjacent, so "i don't have the policy bond" negates
// "policy bond" despite the words in between. The strict less-than keeps
// keywords that start with a negation word ("not me") from negating
// themselves.
func (a *Analyzer) negated(lowered, keyword string) bool {
	kwIdx := strings.Index(lowered, keyword)
	if kwIdx < 0 {
		return false
	}
	for _, prefix := range a.tables.NegationPrefixes {
		if idx := strings.Index(lowered, prefix); idx >= 0 && idx < kwIdx {
			return true
		}
	}
	return false
}

// containsPhrase does word-boundary-aware containment: single-word phrases
// must appear as a whole token so "no" does not hit inside "know", while
// multi-word phrases use plain substring containment.
func containsPhrase(lowered, phrase string) bool {
	if strings.ContainsRune(phrase, ' ') {
		return strings.Contains(lowered, phrase)
	}
	for _, token := range strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == ';' || r == ':'
	}) {
		if token == phrase {
			return true
		}
	}
	return false
}
