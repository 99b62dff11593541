package interrupt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

func TestResolveFollowUpReturnToMainFlow(t *testing.T) {
	e := New(testGraph())

	// Detect, handle, resolve: after a return-to-main-flow follow-up the
	// session must be back where it was interrupted (or the intelligent
	// override), with the context cleared.
	session := domain.NewSession("s1", "payment_followup")
	d := e.Detect("where is my policy bond certificate", "payment_followup", DefaultThreshold)
	require.True(t, d.IsInterruption)
	require.Equal(t, "ask_about_other_policies", d.Intent)

	e.Handle(d.Intent, "where is my policy bond certificate", "payment_followup", session)
	require.True(t, session.InInterruption())

	result := e.ResolveFollowUp("thanks that helps", session)
	assert.True(t, result.Resolved)
	assert.True(t, result.Continue)
	assert.Equal(t, "Glad that helps.", result.Reply)
	assert.Equal(t, "payment_followup", session.CurrentStage)
	assert.False(t, session.InInterruption())
	assert.True(t, session.ReturnedFromInterruption)
}

func TestResolveFollowUpIntelligentResume(t *testing.T) {
	e := New(testGraph())

	// Interrupted on policy_confirmation by the other-policies question, the
	// session resumes on explain_policy_loss instead.
	session := domain.NewSession("s1", "policy_confirmation")
	e.Handle("ask_about_other_policies", "where is my policy bond", "policy_confirmation", session)
	require.True(t, session.InInterruption())

	result := e.ResolveFollowUp("got it, thanks", session)
	assert.True(t, result.Resolved)
	assert.Equal(t, "explain_policy_loss", session.CurrentStage)
	assert.False(t, session.InInterruption())
}

func TestResolveFollowUpCallbackTime(t *testing.T) {
	e := New(testGraph())

	t.Run("Keyword Time", func(t *testing.T) {
		session := domain.NewSession("s1", "policy_confirmation")
		e.Handle("reschedule_callback", "call me later", "policy_confirmation", session)
		require.True(t, session.AwaitingCallbackTime)

		result := e.ResolveFollowUp("tomorrow evening please", session)
		assert.True(t, result.Resolved)
		assert.False(t, result.Continue, "scheduling a callback closes the call")
		assert.Equal(t, "Perfect, I will call you then. Thank you!", result.Reply)
		assert.Equal(t, "closure", session.CurrentStage)
		assert.True(t, session.CallbackScheduled)
		assert.Equal(t, "tomorrow evening please", session.CallbackTime)
		assert.False(t, session.AwaitingCallbackTime)
	})

	t.Run("Typo Time", func(t *testing.T) {
		session := domain.NewSession("s2", "policy_confirmation")
		e.Handle("reschedule_callback", "call me later", "policy_confirmation", session)

		result := e.ResolveFollowUp("tommorow mornig works", session)
		assert.True(t, result.Resolved)
		assert.True(t, session.CallbackScheduled)
	})

	t.Run("Clock Time Regex", func(t *testing.T) {
		for _, utterance := range []string{"12:30", "call at 4 pm", "10am works", "12 30"} {
			session := domain.NewSession("s3", "policy_confirmation")
			e.Handle("reschedule_callback", "call me later", "policy_confirmation", session)

			result := e.ResolveFollowUp(utterance, session)
			assert.True(t, session.CallbackScheduled, "utterance %q should read as a time", utterance)
			assert.Equal(t, utterance, session.CallbackTime)
			assert.False(t, result.Continue)
		}
	})

	t.Run("Day Of Week", func(t *testing.T) {
		session := domain.NewSession("s4", "policy_confirmation")
		e.Handle("reschedule_callback", "call me later", "policy_confirmation", session)

		e.ResolveFollowUp("maybe friday", session)
		assert.True(t, session.CallbackScheduled)
	})
}

func TestResolveFollowUpNextRedirect(t *testing.T) {
	doc := testGraph().Document()
	doc.Intents["ask_about_other_policies"].ExpectedFollowUps["wants_payment"] = domain.ResponseRule{
		Keywords: []string{"pay now"},
		Action:   domain.FollowUpNextPrefix + "payment_followup",
		Response: "Let's set that up.",
	}
	e := New(flowgraph.New(doc))

	session := domain.NewSession("s1", "policy_confirmation")
	e.Handle("ask_about_other_policies", "where is my policy bond", "policy_confirmation", session)

	result := e.ResolveFollowUp("actually i want to pay now", session)
	assert.True(t, result.Resolved)
	assert.True(t, result.Continue)
	assert.Equal(t, "payment_followup", result.Stage)
	assert.Equal(t, "payment_followup", session.CurrentStage)
	assert.False(t, session.InInterruption())
}

func TestResolveFollowUpWildcard(t *testing.T) {
	doc := testGraph().Document()
	doc.Intents["ask_about_other_policies"].ExpectedFollowUps["anything_else"] = domain.ResponseRule{
		Keywords: []string{domain.WildcardKeyword},
		Action:   domain.FollowUpReturnToMainFlow,
		Response: "Alright, back to your renewal.",
	}
	e := New(flowgraph.New(doc))

	session := domain.NewSession("s1", "payment_followup")
	e.Handle("ask_about_other_policies", "where is my policy bond", "payment_followup", session)

	// Matches no keyworded rule; the wildcard catches it.
	result := e.ResolveFollowUp("hmm let me think", session)
	assert.True(t, result.Resolved)
	assert.Equal(t, "Alright, back to your renewal.", result.Reply)
	assert.Equal(t, "payment_followup", session.CurrentStage)
	assert.False(t, session.InInterruption())
}

func TestResolveFollowUpDefaultFallback(t *testing.T) {
	e := New(testGraph())

	// No rule matches and no wildcard is declared: the interruption still
	// terminates within this one extra turn.
	session := domain.NewSession("s1", "payment_followup")
	e.Handle("ask_about_other_policies", "where is my policy bond", "payment_followup", session)
	require.True(t, session.InInterruption())

	result := e.ResolveFollowUp("mmm hmm whatever", session)
	assert.True(t, result.Resolved)
	assert.True(t, result.Continue)
	assert.Equal(t, "payment_followup", session.CurrentStage)
	assert.False(t, session.InInterruption())
	assert.True(t, session.ReturnedFromInterruption)
}

func TestResolveFollowUpWithoutContext(t *testing.T) {
	e := New(testGraph())
	session := domain.NewSession("s1", "greeting")

	result := e.ResolveFollowUp("hello?", session)
	assert.False(t, result.Resolved)
	assert.True(t, result.Continue)
	assert.NotEmpty(t, result.Reply)
}
