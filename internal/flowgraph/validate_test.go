package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

func TestValidateBranch(t *testing.T) {
	doc := testDocument()
	doc.Branches["broken"] = &domain.Branch{
		Intent: "",
		Prompt: "",
		ExpectedResponses: map[string]domain.ResponseRule{
			"yes": {Keywords: []string{"yes"}, Next: "nowhere"},
		},
	}
	store := New(doc)

	t.Run("Healthy Branch", func(t *testing.T) {
		v := store.ValidateBranch("greeting")
		assert.True(t, v.Valid)
		assert.Empty(t, v.Errors)
	})

	t.Run("Broken Branch", func(t *testing.T) {
		v := store.ValidateBranch("broken")
		assert.False(t, v.Valid)
		assert.Contains(t, v.Errors, "missing intent")
		assert.Contains(t, v.Errors, "missing prompt")
		assert.Contains(t, v.Errors, `response "yes" points at missing branch "nowhere"`)
	})

	t.Run("Missing Branch", func(t *testing.T) {
		v := store.ValidateBranch("no_such_branch")
		assert.False(t, v.Valid)
	})

	t.Run("ValidateAll", func(t *testing.T) {
		problems := store.ValidateAll()
		require.Len(t, problems, 1)
		assert.Contains(t, problems, "broken")
	})
}

func TestAuditCleanGraph(t *testing.T) {
	store := New(testDocument())
	report := store.Audit()
	assert.True(t, report.Clean(), "fixture graph should audit clean: %+v", report)
}

func TestAuditFindsProblems(t *testing.T) {
	doc := testDocument()
	// Orphan: nothing transitions to it, and it goes nowhere.
	doc.Branches["orphan"] = &domain.Branch{
		Intent: "orphan",
		Prompt: "You should never hear this.",
	}
	// Retry loop between two branches, still able to reach call_end.
	doc.Branches["policy_confirmation"].ExpectedResponses["unclear"] = domain.ResponseRule{
		Keywords: []string{"what"},
		Next:     "clarify",
	}
	doc.Branches["clarify"] = &domain.Branch{
		Intent: "clarify",
		Prompt: "Let me repeat that.",
		ExpectedResponses: map[string]domain.ResponseRule{
			"back": {Keywords: []string{"okay"}, Next: "policy_confirmation"},
		},
	}
	store := New(doc)

	report := store.Audit()
	assert.Equal(t, []string{"orphan"}, report.Unreachable)
	assert.Equal(t, []string{"orphan"}, report.DeadEnds)
	assert.Equal(t, []string{"orphan"}, report.NoTerminalPath)
	assert.ElementsMatch(t, []string{"clarify", "policy_confirmation"}, report.InCycle)
}

func TestAuditNoTerminalPath(t *testing.T) {
	doc := testDocument()
	// A branch that loops only on itself: reachable, not a dead end, but no
	// route to any terminal.
	doc.Branches["greeting"].ExpectedResponses["stuck"] = domain.ResponseRule{
		Keywords: []string{"stuck"},
		Next:     "limbo",
	}
	doc.Branches["limbo"] = &domain.Branch{
		Intent: "limbo",
		Prompt: "Around we go.",
		ExpectedResponses: map[string]domain.ResponseRule{
			"again": {Keywords: []string{"again"}, Next: "limbo"},
		},
	}
	store := New(doc)

	report := store.Audit()
	assert.Empty(t, report.Unreachable)
	assert.Contains(t, report.NoTerminalPath, "limbo")
	assert.Contains(t, report.InCycle, "limbo")
}
