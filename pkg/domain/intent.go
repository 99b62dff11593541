package domain

// Priority levels for interruptible intents. Detection multiplies the raw
// keyword confidence by the priority weight.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight returns the confidence multiplier for the priority. Unknown values
// behave like medium.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityHigh:
		return 1.2
	case PriorityLow:
		return 0.8
	default:
		return 1.0
	}
}

// Actions an interruption can take once detected.
const (
	InterruptRepeatLast       = "repeat_last_response"
	InterruptScheduleCallback = "schedule_callback"
	InterruptJumpToStage      = "jump_to_stage"
	InterruptSwitchLanguage   = "switch_language"
	InterruptEscalate         = "escalate_to_complaint_handling"
	InterruptNoteOnly         = "note_only"
	InterruptAcknowledge      = "acknowledge_and_redirect"
)

// Follow-up rule actions, consumed while an interruption is active.
const (
	FollowUpReturnToMainFlow = "return_to_main_flow"
	FollowUpEndConversation  = "end_conversation"
	// FollowUpNextPrefix prefixes a direct redirect: "next:payment_followup".
	FollowUpNextPrefix = "next:"
)

// InterruptibleIntent is a global, cross-cutting intent that can suspend the
// scripted flow regardless of the current branch's expected responses.
type InterruptibleIntent struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty"`

	// InterruptibleStages lists branch ids this intent may fire on. A single
	// "*" entry means any stage.
	InterruptibleStages []string `json:"interruptible_stages,omitempty" yaml:"interruptible_stages,omitempty"`

	Action      string `json:"action,omitempty" yaml:"action,omitempty"`
	TargetStage string `json:"target_stage,omitempty" yaml:"target_stage,omitempty"`

	// ReturnToMainFlow marks the intent as resumable: after handling, the
	// session returns to the stage it was interrupted on.
	ReturnToMainFlow bool `json:"return_to_main_flow,omitempty" yaml:"return_to_main_flow,omitempty"`

	Response string `json:"response,omitempty" yaml:"response,omitempty"`

	// ExpectedFollowUps match the customer's next utterance while this
	// interruption is active (same shape as branch response rules).
	ExpectedFollowUps map[string]ResponseRule `json:"expected_follow_ups,omitempty" yaml:"expected_follow_ups,omitempty"`
}

// AppliesTo reports whether the intent may interrupt the given stage.
func (i *InterruptibleIntent) AppliesTo(stageID string) bool {
	if len(i.InterruptibleStages) == 0 {
		return false
	}
	if len(i.InterruptibleStages) == 1 && i.InterruptibleStages[0] == WildcardKeyword {
		return true
	}
	for _, s := range i.InterruptibleStages {
		if s == stageID {
			return true
		}
	}
	return false
}
