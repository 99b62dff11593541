package domain

// Turn outcomes, recorded in TurnResult.Outcome and used as metric labels.
const (
	OutcomeScripted            = "scripted"
	OutcomeGenerated           = "generated"
	OutcomeInterruption        = "interruption"
	OutcomeFollowUp            = "interruption_follow_up"
	OutcomeRedirect            = "redirect"
	OutcomeBranchSuggested     = "branch_suggested"
	OutcomeCallbackConfirm     = "callback_confirmation"
	OutcomeReprompt            = "reprompt"
	OutcomeTerminal            = "terminal"
)

// TurnResult is what the controller returns for one processed utterance.
type TurnResult struct {
	// Reply is the agent's message to speak/send.
	Reply string `json:"reply"`

	// Stage is the session's stage after this turn.
	Stage string `json:"stage"`

	// Intent labels what the turn resolved to (branch intent, interruption
	// intent, or a controller-internal label).
	Intent string `json:"intent,omitempty"`

	// Outcome is the controller's decision path for this turn.
	Outcome string `json:"outcome"`

	// FinalMessage carries a terminal branch's closing script when the turn
	// transitioned into one.
	FinalMessage string `json:"final_message,omitempty"`

	// Continue is false once the conversation has ended.
	Continue bool `json:"continue"`
}
