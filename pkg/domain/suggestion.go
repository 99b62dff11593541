package domain

import "time"

// OpType identifies a staged graph mutation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// CalledWhen describes a rewire: the branch whose intent is PreviousIntent
// gets its response rule PreviousResponse pointed at the suggestion's target
// branch, optionally installing Response as the scripted reply.
type CalledWhen struct {
	PreviousIntent   string `json:"previous_intent" yaml:"previous_intent"`
	PreviousResponse string `json:"previous_response" yaml:"previous_response"`
	Response         string `json:"response,omitempty" yaml:"response,omitempty"`
}

// SuggestionOperation is one staged mutation in the pending log.
// For creates, Branch carries the full definition. For updates, the non-zero
// fields of Fields are applied. For deletes only BranchID is set.
type SuggestionOperation struct {
	Type      OpType    `json:"type" yaml:"type"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	BranchID   string          `json:"branch_id" yaml:"branch_id"`
	Branch     *Branch         `json:"branch,omitempty" yaml:"branch,omitempty"`
	Fields     *BranchUpdate   `json:"fields,omitempty" yaml:"fields,omitempty"`
	CalledWhen []CalledWhen    `json:"called_when,omitempty" yaml:"called_when,omitempty"`
}

// BranchUpdate carries the partial fields of an update operation. Nil
// pointers mean "leave unchanged"; an empty-string TerminalAction pointer
// removes the action.
type BranchUpdate struct {
	Intent            *string                  `json:"intent,omitempty" yaml:"intent,omitempty"`
	Prompt            *string                  `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ExpectedResponses map[string]ResponseRule  `json:"expected_responses,omitempty" yaml:"expected_responses,omitempty"`
	TerminalAction    *string                  `json:"terminal_action,omitempty" yaml:"terminal_action,omitempty"`
}

// SuggestionLog is the persisted shape of the pending operation log.
type SuggestionLog struct {
	Pending   []SuggestionOperation `json:"pending_operations" yaml:"pending_operations"`
	UpdatedAt time.Time             `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Preview summarizes the effect of applying the whole pending log against a
// disposable copy of the graph.
type Preview struct {
	Creates   []string `json:"creates"`
	Updates   []string `json:"updates"`
	Deletes   []string `json:"deletes"`
	Conflicts []string `json:"conflicts"`
}

// ApplyResult reports the outcome of ApplySuggestions. Failures are isolated
// per operation and never abort the batch.
type ApplyResult struct {
	Applied int      `json:"applied"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`

	// AppliedIndices are the log indices that succeeded (and were removed
	// from the pending log).
	AppliedIndices []int `json:"applied_indices,omitempty"`
}

// Validation is the result of a structural check on a single branch.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
