package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/pkg/adapters/file"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.NewStore(t.TempDir())
	ports.RunSessionStoreContract(t, store)
}

func TestFileStore_OverwriteKeepsSingleFile(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", domain.NewSession("s1", "greeting")))
	require.NoError(t, store.Save(ctx, "s1", domain.NewSession("s1", "payment_followup")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not survive a save")

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "payment_followup", loaded.CurrentStage)
}

func TestFileStore_EmptyID(t *testing.T) {
	store := file.NewStore(t.TempDir())

	assert.Error(t, store.Save(context.Background(), "", domain.NewSession("", "greeting")))
	_, err := store.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	source := file.NewSource(path)

	doc := &domain.Document{
		EntryBranch: "greeting",
		Branches: map[string]*domain.Branch{
			"greeting": {
				Intent: "greet_customer",
				Prompt: "Hello, am I speaking with {customer_name}?",
				ExpectedResponses: map[string]domain.ResponseRule{
					"yes": {Keywords: []string{"yes", "speaking"}, Next: "call_end"},
				},
			},
			"call_end": {
				Intent:         "end_call",
				Prompt:         "Goodbye!",
				TerminalAction: domain.ActionEndCall,
			},
		},
		Intents: map[string]*domain.InterruptibleIntent{
			"who_is_this": {
				Keywords:            []string{"who are you"},
				Priority:            domain.PriorityHigh,
				InterruptibleStages: []string{"*"},
				Action:              domain.InterruptNoteOnly,
				Response:            "I am calling from the renewal desk.",
			},
		},
	}
	require.NoError(t, source.Store(doc))

	loaded, err := source.Load()
	require.NoError(t, err)
	assert.Equal(t, "greeting", loaded.EntryBranch)
	require.Contains(t, loaded.Branches, "greeting")
	assert.Equal(t, []string{"yes", "speaking"}, loaded.Branches["greeting"].ExpectedResponses["yes"].Keywords)
	assert.Equal(t, domain.ActionEndCall, loaded.Branches["call_end"].TerminalAction)
	require.Contains(t, loaded.Intents, "who_is_this")
	assert.Equal(t, domain.PriorityHigh, loaded.Intents["who_is_this"].Priority)
}

func TestSource_MissingFile(t *testing.T) {
	source := file.NewSource(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := source.Load()
	assert.Error(t, err)
}

func TestSource_EmptyDocumentRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metadata:\n  version: 1\n"), 0644))

	_, err := file.NewSource(path).Load()
	assert.ErrorContains(t, err, "no branches")
}

func TestJournal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.yaml")
	journal := file.NewJournal(path)

	// Missing journal file means an empty log.
	log, err := journal.LoadLog()
	require.NoError(t, err)
	assert.Nil(t, log)

	stored := &domain.SuggestionLog{
		Pending: []domain.SuggestionOperation{
			{
				Type:     domain.OpCreate,
				BranchID: "payment_portal_help",
				Branch: &domain.Branch{
					ID:     "payment_portal_help",
					Intent: "help_with_portal",
					Prompt: "Let me walk you through the payment portal.",
				},
				CalledWhen: []domain.CalledWhen{
					{PreviousIntent: "collect_payment", PreviousResponse: "portal_trouble"},
				},
			},
			{Type: domain.OpDelete, BranchID: "obsolete_branch"},
		},
	}
	require.NoError(t, journal.StoreLog(stored))

	loaded, err := journal.LoadLog()
	require.NoError(t, err)
	require.Len(t, loaded.Pending, 2)
	assert.Equal(t, domain.OpCreate, loaded.Pending[0].Type)
	assert.Equal(t, "payment_portal_help", loaded.Pending[0].Branch.ID)
	require.Len(t, loaded.Pending[0].CalledWhen, 1)
	assert.Equal(t, "collect_payment", loaded.Pending[0].CalledWhen[0].PreviousIntent)
	assert.Equal(t, domain.OpDelete, loaded.Pending[1].Type)
}
