package domain

// WildcardKeyword marks a response rule that matches any utterance.
// It is only honored while resolving interruption follow-ups; the main-flow
// matcher skips wildcard rules entirely.
const WildcardKeyword = "*"

// Terminal actions a branch may carry.
const (
	ActionEndCall = "END_CALL"
)

// ResponseRule describes one expected customer response on a branch.
type ResponseRule struct {
	// Keywords are literal phrases matched case-insensitively by substring
	// containment. A single "*" entry makes this a catch-all rule.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Response is the scripted reply template. Empty means the reply is
	// delegated to the generator.
	Response string `json:"response,omitempty" yaml:"response,omitempty"`

	// Next is the branch id to transition to. Empty means stay on the
	// current branch.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	// Action is an optional side-effect tag. For interruption follow-up
	// rules it selects the resolution behavior ("return_to_main_flow",
	// "end_conversation", "next:<branch>").
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
}

// IsWildcard reports whether the rule is the catch-all rule.
func (r ResponseRule) IsWildcard() bool {
	return len(r.Keywords) == 1 && r.Keywords[0] == WildcardKeyword
}

// HasKeywords reports whether the rule declares its own (non-wildcard)
// keywords. Rules without keywords fall back to the generic
// affirmative/negative patterns.
func (r ResponseRule) HasKeywords() bool {
	return len(r.Keywords) > 0 && !r.IsWildcard()
}

// Branch is one node in the scripted dialogue graph.
type Branch struct {
	ID string `json:"id" yaml:"id"`

	// Intent labels what this branch is for. Suggestions use intents to
	// locate branches whose rules should be rewired (called_when).
	Intent string `json:"intent" yaml:"intent"`

	// Prompt is the agent's script for this branch, with {field}
	// placeholders resolved against the customer profile.
	Prompt string `json:"prompt" yaml:"prompt"`

	// ExpectedResponses maps a response type (e.g. "yes", "provides_time")
	// to its rule.
	ExpectedResponses map[string]ResponseRule `json:"expected_responses,omitempty" yaml:"expected_responses,omitempty"`

	// PromptOverrides carries language-specific variants of Prompt keyed by
	// language name.
	PromptOverrides map[string]string `json:"prompt_overrides,omitempty" yaml:"prompt_overrides,omitempty"`

	// TerminalAction marks the branch as a conversation endpoint
	// (e.g. ActionEndCall).
	TerminalAction string `json:"terminal_action,omitempty" yaml:"terminal_action,omitempty"`
}

// IsTerminal reports whether reaching this branch ends the conversation.
func (b *Branch) IsTerminal() bool {
	return b.TerminalAction != ""
}

// Clone returns a deep copy of the branch. The graph store hands out clones
// so callers can never mutate committed state through a shared pointer.
func (b *Branch) Clone() *Branch {
	if b == nil {
		return nil
	}
	out := *b
	if b.ExpectedResponses != nil {
		out.ExpectedResponses = make(map[string]ResponseRule, len(b.ExpectedResponses))
		for k, v := range b.ExpectedResponses {
			rule := v
			if v.Keywords != nil {
				rule.Keywords = append([]string(nil), v.Keywords...)
			}
			out.ExpectedResponses[k] = rule
		}
	}
	if b.PromptOverrides != nil {
		out.PromptOverrides = make(map[string]string, len(b.PromptOverrides))
		for k, v := range b.PromptOverrides {
			out.PromptOverrides[k] = v
		}
	}
	return &out
}

// Document is the on-disk shape of a flow definition: the branch graph plus
// the global interruptible-intent table and free-form metadata.
type Document struct {
	Branches map[string]*Branch             `json:"branches" yaml:"branches"`
	Intents  map[string]*InterruptibleIntent `json:"interruptible_intents,omitempty" yaml:"interruptible_intents,omitempty"`
	Metadata map[string]any                 `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// EntryBranch is where new sessions start. Defaults to "greeting".
	EntryBranch string `json:"entry_branch,omitempty" yaml:"entry_branch,omitempty"`
}
