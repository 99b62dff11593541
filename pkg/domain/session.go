package domain

// ChatTurn is one exchange in the session history. User is empty for
// agent-initiated messages (greeting, closure scripts).
type ChatTurn struct {
	User  string `json:"user,omitempty"`
	Agent string `json:"agent"`
}

// InterruptionContext captures a suspended main flow. The engine supports a
// depth of exactly one: a second interruption cannot be pushed while one is
// active.
type InterruptionContext struct {
	IntentName string `json:"intent_name"`

	// OriginalStage is the branch the session resumes to after the
	// interruption completes.
	OriginalStage string `json:"original_stage"`

	// TriggerUtterance is the customer input that fired the interruption.
	TriggerUtterance string `json:"trigger_utterance"`

	// StageHistory tracks the stage progression up to the interruption.
	StageHistory []string `json:"stage_history,omitempty"`
}

// SessionState is the per-conversation mutable state. It is owned by the
// calling session and never shared across sessions; only the flow graph
// itself is shared.
type SessionState struct {
	ID string `json:"id"`

	CurrentStage       string     `json:"current_stage"`
	LanguagePreference string     `json:"language_preference"`
	ChatHistory        []ChatTurn `json:"chat_history,omitempty"`
	LastIntent         string     `json:"last_intent,omitempty"`

	// Interruption is the depth-one suspension context, nil while the main
	// flow is active.
	Interruption *InterruptionContext `json:"interruption,omitempty"`

	// ReturnedFromInterruption is set for exactly one turn after an
	// interruption resolves, so the controller re-validates the next
	// utterance against the restored stage.
	ReturnedFromInterruption bool `json:"returned_from_interruption,omitempty"`

	// AwaitingCallbackTime is set while a schedule-callback interruption
	// waits for the customer to name a time.
	AwaitingCallbackTime bool   `json:"awaiting_callback_time,omitempty"`
	CallbackScheduled    bool   `json:"callback_scheduled,omitempty"`
	CallbackTime         string `json:"callback_time,omitempty"`

	// Callback continuation bookkeeping: a session resumed from a scheduled
	// callback opens with a confirmation exchange.
	IsCallback           bool `json:"is_callback,omitempty"`
	CallbackContinuation bool `json:"callback_continuation,omitempty"`
	CallbackConfirmed    bool `json:"callback_confirmed,omitempty"`

	SupervisorRequested bool `json:"supervisor_requested,omitempty"`

	// Terminated is set once the conversation reaches a terminal branch.
	Terminated bool `json:"terminated,omitempty"`
}

// NewSession creates a fresh session starting at the given branch.
func NewSession(id, entryStage string) *SessionState {
	if entryStage == "" {
		entryStage = "greeting"
	}
	return &SessionState{
		ID:                 id,
		CurrentStage:       entryStage,
		LanguagePreference: "English",
	}
}

// PushInterruption records a suspension of the main flow. It returns false
// if an interruption is already active (nesting is not supported; the
// follow-up resolver owns the turn until the context clears).
func (s *SessionState) PushInterruption(intentName, utterance string) bool {
	if s.Interruption != nil {
		return false
	}
	s.Interruption = &InterruptionContext{
		IntentName:       intentName,
		OriginalStage:    s.CurrentStage,
		TriggerUtterance: utterance,
		StageHistory:     append(append([]string(nil), stageHistoryOf(s)...), s.CurrentStage),
	}
	return true
}

// ClearInterruption drops the active interruption context, if any.
func (s *SessionState) ClearInterruption() {
	s.Interruption = nil
	s.AwaitingCallbackTime = false
}

// InInterruption reports whether an interruption is currently active.
func (s *SessionState) InInterruption() bool {
	return s.Interruption != nil
}

// AppendTurn records one exchange in the chat history.
func (s *SessionState) AppendTurn(user, agent string) {
	s.ChatHistory = append(s.ChatHistory, ChatTurn{User: user, Agent: agent})
}

// LastAgentUtterance returns the most recent agent message, or "" if none.
func (s *SessionState) LastAgentUtterance() string {
	for i := len(s.ChatHistory) - 1; i >= 0; i-- {
		if s.ChatHistory[i].Agent != "" {
			return s.ChatHistory[i].Agent
		}
	}
	return ""
}

// Clone returns a deep copy of the session state.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.ChatHistory = append([]ChatTurn(nil), s.ChatHistory...)
	if s.Interruption != nil {
		ic := *s.Interruption
		ic.StageHistory = append([]string(nil), s.Interruption.StageHistory...)
		out.Interruption = &ic
	}
	return &out
}

func stageHistoryOf(s *SessionState) []string {
	if s.Interruption != nil {
		return s.Interruption.StageHistory
	}
	return nil
}
