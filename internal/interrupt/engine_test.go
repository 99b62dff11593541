package interrupt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

func testGraph() *flowgraph.Store {
	return flowgraph.New(&domain.Document{
		EntryBranch: "greeting",
		Branches: map[string]*domain.Branch{
			"greeting":            {Intent: "greet_customer", Prompt: "Hello, am I speaking with {customer_name}?"},
			"policy_confirmation": {Intent: "confirm_policy", Prompt: "I am calling about your policy."},
			"explain_policy_loss": {Intent: "explain_loss", Prompt: "Let me explain what lapsing costs you."},
			"payment_followup":    {Intent: "collect_payment", Prompt: "How would you like to pay?"},
			"complaint_handling":  {Intent: "handle_complaint", Prompt: "I am sorry to hear that."},
			"closure":             {Intent: "close_call", Prompt: "Thank you for your time.", TerminalAction: domain.ActionEndCall},
		},
		Intents: map[string]*domain.InterruptibleIntent{
			"ask_about_other_policies": {
				Keywords:            []string{"where", "policy", "bond", "status", "lapsed", "certificate", "paper", "value"},
				Priority:            domain.PriorityMedium,
				InterruptibleStages: []string{"*"},
				ReturnToMainFlow:    true,
				Response:            "Let me check that for you.",
				ExpectedFollowUps: map[string]domain.ResponseRule{
					"satisfied": {
						Keywords: []string{"thanks", "got it"},
						Action:   domain.FollowUpReturnToMainFlow,
						Response: "Glad that helps.",
					},
				},
			},
			"who_is_this": {
				Keywords:            []string{"who are you", "which company"},
				Priority:            domain.PriorityHigh,
				InterruptibleStages: []string{"*"},
				Action:              domain.InterruptNoteOnly,
				Response:            "I am Veena from the insurance renewal desk.",
			},
			"reschedule_callback": {
				Keywords:            []string{"call me later", "busy right now", "reschedule", "not a good time"},
				Priority:            domain.PriorityHigh,
				InterruptibleStages: []string{"*"},
				Action:              domain.InterruptScheduleCallback,
				Response:            "When would be a good time to call you back?",
				ExpectedFollowUps: map[string]domain.ResponseRule{
					"provides_time": {
						Keywords: []string{"tomorrow", "evening", "morning"},
						Action:   domain.FollowUpEndConversation,
						Response: "Perfect, I will call you then. Thank you!",
					},
				},
			},
			"early_payment_decision": {
				Keywords:            []string{"ready to pay", "pay right now", "take my payment"},
				Priority:            domain.PriorityHigh,
				InterruptibleStages: []string{"*"},
				Action:              domain.InterruptJumpToStage,
				TargetStage:         "payment_followup",
				Response:            "Wonderful, let's get that done.",
			},
			"language_switch": {
				Keywords:            []string{"speak hindi", "hindi please", "in hindi"},
				Priority:            domain.PriorityMedium,
				InterruptibleStages: []string{"*"},
				Action:              domain.InterruptSwitchLanguage,
				Response:            "Sure, switching now.",
			},
			"complaint_or_angry": {
				Keywords:            []string{"complaint", "terrible service", "angry"},
				Priority:            domain.PriorityHigh,
				InterruptibleStages: []string{"*"},
				Action:              domain.InterruptEscalate,
				TargetStage:         "complaint_handling",
				Response:            "I am sorry. Let me connect you to my supervisor.",
			},
			"payment_only_question": {
				Keywords:            []string{"extra charges", "late fee"},
				Priority:            domain.PriorityMedium,
				InterruptibleStages: []string{"payment_followup"},
				Response:            "There is no late fee this month.",
				ReturnToMainFlow:    true,
			},
		},
	})
}

func TestDetect(t *testing.T) {
	e := New(testGraph())

	t.Run("Exact Phrase High Confidence", func(t *testing.T) {
		d := e.Detect("who are you", "greeting", DefaultThreshold)
		require.True(t, d.IsInterruption)
		assert.Equal(t, "who_is_this", d.Intent)
		assert.GreaterOrEqual(t, d.Confidence, DefaultThreshold)
	})

	t.Run("No Keywords No Interruption", func(t *testing.T) {
		d := e.Detect("yes that works for me", "greeting", DefaultThreshold)
		assert.False(t, d.IsInterruption)
	})

	t.Run("Stage Applicability", func(t *testing.T) {
		d := e.Detect("why the extra charges", "greeting", DefaultThreshold)
		assert.NotEqual(t, "payment_only_question", d.Intent)

		d = e.Detect("why the extra charges", "payment_followup", DefaultThreshold)
		require.True(t, d.IsInterruption)
		assert.Equal(t, "payment_only_question", d.Intent)
	})

	t.Run("Empty Utterance", func(t *testing.T) {
		d := e.Detect("   ", "greeting", DefaultThreshold)
		assert.False(t, d.IsInterruption)
	})

	t.Run("Compound Override", func(t *testing.T) {
		// Long utterance keeps keyword coverage low, so the raw score
		// (3 of 8 keywords = 0.375) sits below the 0.4 threshold. The
		// answer token plus question token forces detection anyway.
		utterance := "yes but before that can you please tell me where is my policy bond document kept"
		d := e.Detect(utterance, "policy_confirmation", DefaultThreshold)
		require.True(t, d.IsInterruption)
		assert.True(t, d.CompoundOverride)
		assert.Equal(t, "ask_about_other_policies", d.Intent)
		assert.Less(t, d.Confidence, DefaultThreshold)
		assert.GreaterOrEqual(t, d.Confidence, CompoundOverrideScore)
	})

	t.Run("No Override Without Question Word", func(t *testing.T) {
		utterance := "yes i will check the policy bond document and certificate paper sometime later today"
		d := e.Detect(utterance, "policy_confirmation", 0.99)
		assert.False(t, d.IsInterruption, "no question token, threshold not met")
	})
}

func TestKeywordConfidence(t *testing.T) {
	t.Run("Exact Match Boost", func(t *testing.T) {
		score := keywordConfidence("reschedule", []string{"reschedule", "call me later"})
		assert.Equal(t, 1.0, score, "0.5 base + 0.4 coverage + 0.3 exact, capped")
	})

	t.Run("Floor For Good Single Match", func(t *testing.T) {
		score := keywordConfidence("i am busy right now sorry", []string{"busy right now", "call me later", "reschedule", "not a good time"})
		assert.GreaterOrEqual(t, score, 0.5)
	})

	t.Run("No Match", func(t *testing.T) {
		assert.Zero(t, keywordConfidence("hello there", []string{"reschedule"}))
	})

	t.Run("No Keywords", func(t *testing.T) {
		assert.Zero(t, keywordConfidence("hello", nil))
	})
}

func TestHandleActions(t *testing.T) {
	e := New(testGraph())

	t.Run("Repeat Last", func(t *testing.T) {
		g := testGraph()
		doc := g.Document()
		doc.Intents["repeat_request"] = &domain.InterruptibleIntent{
			Keywords:            []string{"repeat", "say that again"},
			InterruptibleStages: []string{"*"},
			Action:              domain.InterruptRepeatLast,
		}
		eng := New(flowgraph.New(doc))

		session := domain.NewSession("s1", "policy_confirmation")
		session.AppendTurn("hello", "I am calling about your policy renewal.")

		result := eng.Handle("repeat_request", "can you repeat that", "policy_confirmation", session)
		assert.Equal(t, "Sure, let me repeat that. I am calling about your policy renewal.", result.Reply)
		assert.True(t, result.ShouldResume)
		assert.Equal(t, "policy_confirmation", result.Stage)
		assert.False(t, session.InInterruption())
	})

	t.Run("Schedule Callback Stays Active", func(t *testing.T) {
		session := domain.NewSession("s2", "policy_confirmation")
		result := e.Handle("reschedule_callback", "call me later please", "policy_confirmation", session)

		assert.False(t, result.ShouldResume)
		assert.True(t, session.AwaitingCallbackTime)
		require.True(t, session.InInterruption())
		assert.Equal(t, "policy_confirmation", session.Interruption.OriginalStage)
	})

	t.Run("Jump To Stage Is Irreversible", func(t *testing.T) {
		session := domain.NewSession("s3", "greeting")
		result := e.Handle("early_payment_decision", "i am ready to pay", "greeting", session)

		assert.Equal(t, "payment_followup", result.Stage)
		assert.Equal(t, "payment_followup", session.CurrentStage)
		assert.False(t, session.InInterruption(), "hard jump clears the context")
		assert.False(t, result.ShouldResume)
	})

	t.Run("Switch Language", func(t *testing.T) {
		session := domain.NewSession("s4", "greeting")
		result := e.Handle("language_switch", "can you speak hindi", "greeting", session)

		assert.Equal(t, "Hindi", session.LanguagePreference)
		assert.Contains(t, result.Reply, "Sure, switching now.")
		assert.True(t, result.ShouldResume)
		assert.False(t, session.InInterruption())
	})

	t.Run("Escalate", func(t *testing.T) {
		session := domain.NewSession("s5", "payment_followup")
		result := e.Handle("complaint_or_angry", "this is terrible service", "payment_followup", session)

		assert.Equal(t, "complaint_handling", result.Stage)
		assert.Equal(t, "complaint_handling", session.CurrentStage)
		assert.False(t, result.ShouldResume)
	})

	t.Run("Note Only", func(t *testing.T) {
		session := domain.NewSession("s6", "greeting")
		result := e.Handle("who_is_this", "who are you", "greeting", session)

		assert.True(t, session.SupervisorRequested)
		assert.True(t, result.ShouldResume)
		assert.False(t, session.InInterruption(), "no follow-ups declared, nothing to await")
	})

	t.Run("Acknowledge Keeps Context", func(t *testing.T) {
		session := domain.NewSession("s7", "policy_confirmation")
		result := e.Handle("ask_about_other_policies", "where is my policy bond", "policy_confirmation", session)

		assert.Equal(t, "Let me check that for you.", result.Reply)
		assert.True(t, result.ShouldResume)
		require.True(t, session.InInterruption())
		assert.Equal(t, "policy_confirmation", session.Interruption.OriginalStage)
	})

	t.Run("Unknown Intent", func(t *testing.T) {
		session := domain.NewSession("s8", "greeting")
		result := e.Handle("no_such_intent", "whatever", "greeting", session)
		assert.True(t, result.ShouldResume)
		assert.NotEmpty(t, result.Reply)
	})
}

func TestIsCritical(t *testing.T) {
	e := New(testGraph())

	assert.True(t, e.IsCritical("reschedule_callback"))
	assert.True(t, e.IsCritical("early_payment_decision"))
	assert.True(t, e.IsCritical("complaint_or_angry"))
	assert.False(t, e.IsCritical("ask_about_other_policies"))
	assert.False(t, e.IsCritical("already_paid_interruption"), "listed but absent from the intent table")
}

func TestIntelligentResumeStage(t *testing.T) {
	e := New(testGraph())

	t.Run("Override For Known Combination", func(t *testing.T) {
		session := domain.NewSession("s1", "policy_confirmation")
		require.True(t, session.PushInterruption("ask_about_other_policies", "where is my bond"))
		assert.Equal(t, "explain_policy_loss", e.IntelligentResumeStage(session))
	})

	t.Run("Plain Restoration Otherwise", func(t *testing.T) {
		session := domain.NewSession("s2", "payment_followup")
		require.True(t, session.PushInterruption("ask_about_other_policies", "where is my bond"))
		assert.Equal(t, "payment_followup", e.IntelligentResumeStage(session))
	})

	t.Run("Override Target Must Exist", func(t *testing.T) {
		eng := New(testGraph(), WithResumeOverrides([]ResumeOverride{
			{Intent: "ask_about_other_policies", Target: "no_such_branch"},
		}))
		session := domain.NewSession("s3", "policy_confirmation")
		require.True(t, session.PushInterruption("ask_about_other_policies", "where is my bond"))
		assert.Equal(t, "policy_confirmation", eng.IntelligentResumeStage(session))
	})

	t.Run("No Active Interruption", func(t *testing.T) {
		session := domain.NewSession("s4", "greeting")
		assert.Equal(t, "greeting", e.IntelligentResumeStage(session))
	})
}
