package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

func TestApplyCreateWithRewire(t *testing.T) {
	store := New(testDocument())

	require.True(t, store.ProposeCreate(&domain.Branch{
		ID:     "discount_offer",
		Intent: "offer_discount",
		Prompt: "Before you decide, we can offer a 10% loyalty discount.",
		ExpectedResponses: map[string]domain.ResponseRule{
			"interested": {
				Keywords: []string{"interested", "tell me more"},
				Next:     "payment_reminder",
			},
		},
	}, []domain.CalledWhen{{
		PreviousIntent:   "remind_payment",
		PreviousResponse: "hesitant",
		Response:         "I understand. Let me share something that might help.",
	}}))

	result := store.ApplySuggestions(nil)
	assert.Equal(t, 1, result.Applied)
	assert.Zero(t, result.Failed)
	assert.Empty(t, store.PendingOperations(), "applied ops leave the log")

	created := store.GetBranch("discount_offer")
	require.NotNil(t, created)
	assert.Equal(t, "offer_discount", created.Intent)

	// The rewire installed a new response rule on the matching branch.
	reminder := store.GetBranch("payment_reminder")
	rule, ok := reminder.ExpectedResponses["hesitant"]
	require.True(t, ok)
	assert.Equal(t, "discount_offer", rule.Next)
	assert.Equal(t, "I understand. Let me share something that might help.", rule.Response)
}

func TestApplyUpdatePartialFields(t *testing.T) {
	store := New(testDocument())

	prompt := "Your renewal premium of {premium_amount} is due on {due_date}. Shall I send a payment link?"
	require.True(t, store.ProposeUpdate("payment_reminder", &domain.BranchUpdate{
		Prompt: &prompt,
		ExpectedResponses: map[string]domain.ResponseRule{
			"wants_link": {
				Keywords: []string{"send link", "payment link"},
				Response: "Sending the link to your registered number now.",
				Next:     "call_end",
			},
		},
	}, nil))

	result := store.ApplySuggestions(nil)
	require.Equal(t, 1, result.Applied)

	b := store.GetBranch("payment_reminder")
	assert.Equal(t, prompt, b.Prompt)
	assert.Equal(t, "remind_payment", b.Intent, "unset fields stay")
	assert.Contains(t, b.ExpectedResponses, "wants_link")
	assert.Contains(t, b.ExpectedResponses, "acknowledged", "existing rules merge, not replace")
}

func TestApplyDeleteScrubsTransitions(t *testing.T) {
	store := New(testDocument())

	require.True(t, store.ProposeDelete("schedule_callback"))
	result := store.ApplySuggestions(nil)
	require.Equal(t, 1, result.Applied)

	assert.Nil(t, store.GetBranch("schedule_callback"))

	// policy_confirmation's "busy" rule pointed at the deleted branch.
	rule := store.GetBranch("policy_confirmation").ExpectedResponses["busy"]
	assert.Equal(t, "", rule.Next, "dangling transition is scrubbed")
	assert.Equal(t, "No problem, when should I call you back?", rule.Response, "reply survives the scrub")
}

func TestApplyIsolatesFailures(t *testing.T) {
	store := New(testDocument())

	// Stage a delete twice. Both pass the precondition (the branch exists in
	// the committed graph), but the second becomes invalid the moment the
	// first applies.
	require.True(t, store.ProposeDelete("schedule_callback"))
	require.True(t, store.ProposeDelete("schedule_callback"))
	require.True(t, store.ProposeDelete("payment_reminder"))

	result := store.ApplySuggestions(nil)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "schedule_callback")

	// The failed op stays in the log; applied ones are gone.
	ops := store.PendingOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, "schedule_callback", ops[0].BranchID)
}

func TestApplySelectedIndices(t *testing.T) {
	store := New(testDocument())

	require.True(t, store.ProposeCreate(&domain.Branch{ID: "branch_a", Intent: "a", Prompt: "a"}, nil))
	require.True(t, store.ProposeCreate(&domain.Branch{ID: "branch_b", Intent: "b", Prompt: "b"}, nil))
	require.True(t, store.ProposeCreate(&domain.Branch{ID: "branch_c", Intent: "c", Prompt: "c"}, nil))

	result := store.ApplySuggestions([]int{0, 2})
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, []int{0, 2}, result.AppliedIndices)

	assert.NotNil(t, store.GetBranch("branch_a"))
	assert.Nil(t, store.GetBranch("branch_b"))
	assert.NotNil(t, store.GetBranch("branch_c"))

	// branch_b's op survives and can be applied later.
	ops := store.PendingOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, "branch_b", ops[0].BranchID)

	result = store.ApplySuggestions(nil)
	assert.Equal(t, 1, result.Applied)
	assert.NotNil(t, store.GetBranch("branch_b"))
}

func TestApplyOutOfRangeIndex(t *testing.T) {
	store := New(testDocument())
	require.True(t, store.ProposeDelete("schedule_callback"))

	result := store.ApplySuggestions([]int{5})
	assert.Zero(t, result.Applied)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, store.PendingOperations(), 1, "log untouched on failure")

	// Committed graph untouched too.
	assert.NotNil(t, store.GetBranch("schedule_callback"))
}

func TestApplyIsIdempotentOnEmptyLog(t *testing.T) {
	store := New(testDocument())

	require.True(t, store.ProposeDelete("schedule_callback"))
	first := store.ApplySuggestions(nil)
	require.Equal(t, 1, first.Applied)

	before := store.ListBranches()
	second := store.ApplySuggestions(nil)
	assert.Zero(t, second.Applied)
	assert.Zero(t, second.Failed)
	assert.Equal(t, before, store.ListBranches())
}

func TestPreviewEffect(t *testing.T) {
	store := New(testDocument())

	require.True(t, store.ProposeCreate(&domain.Branch{ID: "branch_a", Intent: "a", Prompt: "a"}, nil))
	prompt := "p"
	require.True(t, store.ProposeUpdate("greeting", &domain.BranchUpdate{Prompt: &prompt}, nil))
	require.True(t, store.ProposeDelete("schedule_callback"))
	// A duplicate create passes the precondition but conflicts against the
	// simulated state.
	require.True(t, store.ProposeCreate(&domain.Branch{ID: "branch_a", Intent: "a", Prompt: "a"}, nil))

	preview := store.PreviewEffect()
	assert.Equal(t, []string{"branch_a"}, preview.Creates)
	assert.Equal(t, []string{"greeting"}, preview.Updates)
	assert.Equal(t, []string{"schedule_callback"}, preview.Deletes)
	require.Len(t, preview.Conflicts, 1)
	assert.Contains(t, preview.Conflicts[0], "branch_a")

	// Preview is read-only: nothing committed, log intact.
	assert.Nil(t, store.GetBranch("branch_a"))
	assert.NotNil(t, store.GetBranch("schedule_callback"))
	assert.Len(t, store.PendingOperations(), 4)
}

func TestUpdateRewireOnIntentMatch(t *testing.T) {
	store := New(testDocument())

	// Rewiring via update: point greeting's "yes" straight at payment_reminder.
	require.True(t, store.ProposeUpdate("payment_reminder", nil, []domain.CalledWhen{{
		PreviousIntent:   "greet_customer",
		PreviousResponse: "yes",
	}}))

	result := store.ApplySuggestions(nil)
	require.Equal(t, 1, result.Applied)

	rule := store.GetBranch("greeting").ExpectedResponses["yes"]
	assert.Equal(t, "payment_reminder", rule.Next)
	assert.Equal(t, "Great, thank you!", rule.Response, "existing reply kept when hook has none")
}

type memorySink struct {
	stored *domain.Document
}

func (s *memorySink) Store(doc *domain.Document) error {
	s.stored = doc
	return nil
}

func TestApplyPersistsThroughSink(t *testing.T) {
	sink := &memorySink{}
	store := New(testDocument(), WithSink(sink))

	require.True(t, store.ProposeDelete("schedule_callback"))
	store.ApplySuggestions(nil)

	require.NotNil(t, sink.stored)
	assert.NotContains(t, sink.stored.Branches, "schedule_callback")
	assert.Contains(t, sink.stored.Branches, "greeting")
}
