package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/pkg/adapters/memory"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	state := domain.NewSession("s1", "greeting")
	require.NoError(t, store.Save(ctx, "s1", state))

	// Mutating the caller's copy must not leak into the store.
	state.CurrentStage = "mutated"

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "greeting", loaded.CurrentStage)
}
