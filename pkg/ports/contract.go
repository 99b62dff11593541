package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// RunSessionStoreContract runs a suite of tests verifying that a
// SessionStore implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewSession(sessionID, "greeting")
		state.LanguagePreference = "Hindi"
		state.AppendTurn("hello", "Hello! May I speak with you?")

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentStage, loaded.CurrentStage)
		assert.Equal(t, "Hindi", loaded.LanguagePreference)
		require.Len(t, loaded.ChatHistory, 1)
		assert.Equal(t, "hello", loaded.ChatHistory[0].User)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Interruption Round-Trip", func(t *testing.T) {
		state := domain.NewSession(sessionID, "policy_confirmation")
		require.True(t, state.PushInterruption("ask_about_other_policies", "where is my bond?"))

		require.NoError(t, store.Save(ctx, sessionID, state))
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Interruption)
		assert.Equal(t, "policy_confirmation", loaded.Interruption.OriginalStage)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewSession(sessionID, "greeting")))

		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, "greeting"))
		_ = store.Save(ctx, id2, domain.NewSession(id2, "greeting"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
