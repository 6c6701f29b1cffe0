package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "rollcall/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{UserID: "u-1", Action: "a"}))
	require.NoError(t, s.Append(ctx, audit.Event{UserID: "u-2", Action: "b"}))
	require.NoError(t, s.Append(ctx, audit.Event{UserID: "u-1", Action: "c"}))

	events, err := s.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Action)
	assert.Equal(t, "c", events[1].Action)

	events[0].Action = "mutated"
	again, _ := s.ListByUser(ctx, "u-1")
	assert.Equal(t, "a", again[0].Action)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	s.Clear()
	all, _ = s.ListAll(ctx)
	assert.Empty(t, all)
}
