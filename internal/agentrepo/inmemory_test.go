package agentrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_CreateAgentAssignsIDAndDefaults(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()

	a, err := repo.CreateAgent(context.Background(), Agent{Name: "bot", OwnerID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusIdle, a.Status)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestInMemory_GetAgentHidesSoftDeleted(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	a, err := repo.CreateAgent(ctx, Agent{Name: "bot"})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDeleteAgent(ctx, a.ID))

	_, ok, err := repo.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a soft-deleted agent must not be returned by GetAgent")
}

func TestInMemory_UpdateAgentPreservesCreatedAt(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	a, err := repo.CreateAgent(ctx, Agent{Name: "bot"})
	require.NoError(t, err)
	createdAt := a.CreatedAt

	a.Name = "renamed"
	updated, err := repo.UpdateAgent(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, createdAt, updated.CreatedAt)
}

func TestInMemory_UpdateAgentUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	_, err := repo.UpdateAgent(context.Background(), Agent{ID: "no-such-id"})
	assert.Error(t, err)
}

func TestInMemory_ListAgentsByOwnerExcludesOthersAndDeleted(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	a1, err := repo.CreateAgent(ctx, Agent{Name: "mine-1", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = repo.CreateAgent(ctx, Agent{Name: "not-mine", OwnerID: "u2"})
	require.NoError(t, err)
	a3, err := repo.CreateAgent(ctx, Agent{Name: "mine-deleted", OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, repo.SoftDeleteAgent(ctx, a3.ID))

	out, err := repo.ListAgentsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a1.ID, out[0].ID)
}

func TestInMemory_ListPublicAgentsOnlyReturnsPublicNonDeleted(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	pub, err := repo.CreateAgent(ctx, Agent{Name: "public-bot", Public: true})
	require.NoError(t, err)
	_, err = repo.CreateAgent(ctx, Agent{Name: "private-bot", Public: false})
	require.NoError(t, err)
	deleted, err := repo.CreateAgent(ctx, Agent{Name: "deleted-public-bot", Public: true})
	require.NoError(t, err)
	require.NoError(t, repo.SoftDeleteAgent(ctx, deleted.ID))

	out, err := repo.ListPublicAgents(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, pub.ID, out[0].ID)
}

func TestInMemory_SessionLifecycle(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	s, err := repo.CreateSession(ctx, Session{AgentID: "agent-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, ok, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.ID, got.ID)

	require.NoError(t, repo.TouchSession(ctx, s.ID))
	touched, _, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, touched.LastActiveAt.After(s.CreatedAt) || touched.LastActiveAt.Equal(s.CreatedAt))

	require.NoError(t, repo.DeleteSession(ctx, s.ID))
	_, ok, err = repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemory_ListSessionsByAgentOrdersByMostRecentlyActive(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	s1, err := repo.CreateSession(ctx, Session{AgentID: "agent-1"})
	require.NoError(t, err)
	s2, err := repo.CreateSession(ctx, Session{AgentID: "agent-1"})
	require.NoError(t, err)
	require.NoError(t, repo.TouchSession(ctx, s1.ID))

	out, err := repo.ListSessionsByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, s1.ID, out[0].ID, "most recently touched session must sort first")
	assert.Equal(t, s2.ID, out[1].ID)
}

func TestInMemory_TouchSessionUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	assert.Error(t, repo.TouchSession(context.Background(), "no-such-session"))
}

func TestInMemory_AppendAndListMessagesRespectsLimitAndOffset(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.AppendMessage(ctx, Message{SessionID: "sess-1", Role: RoleUser, Content: "msg"})
		require.NoError(t, err)
	}

	all, err := repo.ListMessages(ctx, "sess-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)

	page, err := repo.ListMessages(ctx, "sess-1", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)
	assert.Equal(t, all[2].ID, page[1].ID)

	beyond, err := repo.ListMessages(ctx, "sess-1", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestInMemory_DeleteSessionAlsoClearsMessages(t *testing.T) {
	t.Parallel()
	repo := NewInMemory()
	ctx := context.Background()

	s, err := repo.CreateSession(ctx, Session{AgentID: "agent-1"})
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, Message{SessionID: s.ID, Role: RoleUser, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSession(ctx, s.ID))

	msgs, err := repo.ListMessages(ctx, s.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
