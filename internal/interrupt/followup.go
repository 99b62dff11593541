package interrupt

import (
	"regexp"
	"sort"
	"strings"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// timeCollectingType is the follow-up response type whose matching also
// accepts free-form time expressions.
const timeCollectingType = "provides_time"

var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}[\s:]\d{2}`),          // "12 30", "12:30"
	regexp.MustCompile(`\d{1,2}\s?(am|pm)`),          // "10 am", "2pm"
	regexp.MustCompile(`(morning|afternoon|evening|night)`),
	regexp.MustCompile(`(today|tomorrow|tommorow|tommorrow)`),
	regexp.MustCompile(`(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`),
}

// FollowUpResult reports how a follow-up utterance resolved the active
// interruption.
type FollowUpResult struct {
	Reply string

	// Stage is the session stage after resolution.
	Stage string

	// Resolved is true when the interruption context was cleared and the
	// main flow restored; the controller overwrites its working stage with
	// Stage for the rest of the turn.
	Resolved bool

	// Continue is false when the resolution ends the conversation
	// (a scheduled callback closes the call).
	Continue bool
}

// ResolveFollowUp matches the utterance against the active interruption's
// expected follow-up responses. Whatever happens, the interruption context
// is gone when this returns: an unmatched utterance falls back to clearing
// the context and restoring the original stage, so an interruption never
// outlives one extra turn.
func (e *Engine) ResolveFollowUp(utterance string, session *domain.SessionState) FollowUpResult {
	ctx := session.Interruption
	if ctx == nil {
		return FollowUpResult{
			Reply:    "I'm not sure what you're referring to. Let's continue with your policy renewal.",
			Stage:    session.CurrentStage,
			Continue: true,
		}
	}

	lowered := strings.ToLower(utterance)
	intent := e.graph.Intent(ctx.IntentName)

	if intent != nil {
		types := make([]string, 0, len(intent.ExpectedFollowUps))
		for rt := range intent.ExpectedFollowUps {
			types = append(types, rt)
		}
		sort.Strings(types)

		// Keyworded rules first, wildcard as the explicit catch-all after.
		for _, rt := range types {
			rule := intent.ExpectedFollowUps[rt]
			if rule.IsWildcard() || !e.followUpMatches(lowered, rt, rule) {
				continue
			}
			return e.applyFollowUp(rule, utterance, session)
		}
		for _, rt := range types {
			rule := intent.ExpectedFollowUps[rt]
			if rule.IsWildcard() {
				return e.applyFollowUp(rule, utterance, session)
			}
		}
	}

	// Default fallback: clear and restore, guaranteeing termination of the
	// interruption state.
	restored := e.restoreMainFlow(session)
	return FollowUpResult{
		Reply:    "I understand. Let's continue with your policy renewal.",
		Stage:    restored,
		Resolved: true,
		Continue: true,
	}
}

// followUpMatches checks a keyworded follow-up rule with typo tolerance,
// plus the time-expression recognizers for the time-collecting type.
func (e *Engine) followUpMatches(lowered, responseType string, rule domain.ResponseRule) bool {
	for _, keyword := range rule.Keywords {
		kw := strings.ToLower(keyword)
		if strings.Contains(lowered, kw) {
			return true
		}
		for _, variant := range e.typoVariants[kw] {
			if strings.Contains(lowered, variant) {
				return true
			}
		}
	}
	if responseType == timeCollectingType {
		for _, pattern := range timePatterns {
			if pattern.MatchString(lowered) {
				return true
			}
		}
	}
	return false
}

// applyFollowUp executes the matched rule's action.
func (e *Engine) applyFollowUp(rule domain.ResponseRule, utterance string, session *domain.SessionState) FollowUpResult {
	action := rule.Action
	if action == "" {
		action = domain.FollowUpReturnToMainFlow
	}

	switch {
	case action == domain.FollowUpEndConversation:
		session.ClearInterruption()
		session.CallbackScheduled = true
		session.CallbackTime = utterance
		session.CurrentStage = closureStage

		reply := rule.Response
		if reply == "" {
			reply = "Thank you for your time."
		}
		e.logger.Info("callback scheduled", "time", utterance)
		return FollowUpResult{Reply: reply, Stage: closureStage, Resolved: true, Continue: false}

	case strings.HasPrefix(action, domain.FollowUpNextPrefix):
		target := strings.TrimPrefix(action, domain.FollowUpNextPrefix)
		session.ClearInterruption()
		session.CurrentStage = target
		return FollowUpResult{Reply: rule.Response, Stage: target, Resolved: true, Continue: true}

	default: // return to main flow
		restored := e.restoreMainFlow(session)
		reply := rule.Response
		if reply == "" {
			reply = "Great! Let's continue with your policy renewal."
		}
		return FollowUpResult{Reply: reply, Stage: restored, Resolved: true, Continue: true}
	}
}

// restoreMainFlow clears the interruption and returns the stage the session
// resumes on, honoring the intelligent-resume overrides. The session flags
// the next ordinary utterance for re-validation against the restored stage.
func (e *Engine) restoreMainFlow(session *domain.SessionState) string {
	restored := e.IntelligentResumeStage(session)
	if restored == "" {
		restored = session.CurrentStage
	}
	session.ClearInterruption()
	session.CurrentStage = restored
	session.ReturnedFromInterruption = true
	return restored
}
