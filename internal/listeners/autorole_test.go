package listeners

import (
	"context"
	"testing"

	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func autoRoleEnv(t *testing.T, roleID string) (env, *AutoRole) {
	t.Helper()
	e := newEnv("g")
	require.NoError(t, e.cache.SetAutoRole(context.Background(), "g", roleID))
	return e, NewAutoRole(testLogger(), e.cache, e.platform)
}

func TestAutoRoleGrants(t *testing.T) {
	e, a := autoRoleEnv(t, "member")

	amy := models.Member{ID: "amy", Username: "Amy"}
	e.platform.setMember(amy)

	require.NoError(t, a.Handle(context.Background(), memberEvent(router.KindMemberAdd, amy)))
	assert.Equal(t, []string{"amy:member"}, e.platform.adds)

	// Replaying the join finds the role already present.
	require.NoError(t, a.Handle(context.Background(), memberEvent(router.KindMemberAdd, amy)))
	assert.Len(t, e.platform.adds, 1)
}

func TestAutoRoleWaitsForScreening(t *testing.T) {
	ctx := context.Background()
	e, a := autoRoleEnv(t, "member")

	pending := models.Member{ID: "amy", Username: "Amy", Pending: true}
	e.platform.setMember(pending)
	require.NoError(t, a.Handle(ctx, memberEvent(router.KindMemberAdd, pending)))
	assert.Empty(t, e.platform.adds)

	passed := pending
	passed.Pending = false
	e.platform.setMember(passed)
	require.NoError(t, a.Handle(ctx, router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &passed, Before: &pending}))
	assert.Equal(t, []string{"amy:member"}, e.platform.adds)
}

func TestAutoRoleIgnoresSettledUpdates(t *testing.T) {
	e, a := autoRoleEnv(t, "member")

	before := models.Member{ID: "amy", Username: "Amy"}
	after := before
	after.Nick = "A"
	e.platform.setMember(after)

	require.NoError(t, a.Handle(context.Background(), router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &before}))
	assert.Empty(t, e.platform.adds)
}

func TestAutoRoleSelfHeals(t *testing.T) {
	ctx := context.Background()
	e, a := autoRoleEnv(t, "deleted")

	amy := models.Member{ID: "amy", Username: "Amy"}
	e.platform.setMember(amy)

	require.NoError(t, a.Handle(ctx, memberEvent(router.KindMemberAdd, amy)))
	assert.Empty(t, e.platform.adds)

	roleID, err := e.cache.AutoRole(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, roleID)

	g, err := e.store.GetGuildConfig(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, g.AutoRoleID)
}

func TestAutoRoleSkips(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		member models.Member
	}{
		{"unset", "", models.Member{ID: "amy", Username: "Amy"}},
		{"bot", "member", models.Member{ID: "other", Username: "Other", Bot: true}},
		{"role above bot", "admin", models.Member{ID: "amy", Username: "Amy"}},
		{"role level with bot", "keeper", models.Member{ID: "amy", Username: "Amy"}},
		{"already has it", "member", models.Member{ID: "amy", Username: "Amy", Roles: []string{"member"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, a := autoRoleEnv(t, tc.role)
			e.platform.setMember(tc.member)

			require.NoError(t, a.Handle(context.Background(), memberEvent(router.KindMemberAdd, tc.member)))
			assert.Empty(t, e.platform.adds)
		})
	}
}

func TestAutoRoleRechecksLiveMember(t *testing.T) {
	e, a := autoRoleEnv(t, "member")

	// The payload is stale; the member already got the role elsewhere.
	stale := models.Member{ID: "amy", Username: "Amy"}
	live := stale
	live.Roles = []string{"member"}
	e.platform.setMember(live)

	require.NoError(t, a.Handle(context.Background(), memberEvent(router.KindMemberAdd, stale)))
	assert.Empty(t, e.platform.adds)
}

func TestAutoRoleToleratesRaces(t *testing.T) {
	e, a := autoRoleEnv(t, "member")

	amy := models.Member{ID: "amy", Username: "Amy"}
	e.platform.setMember(amy)
	e.platform.addErr = platform.ErrPermissionDenied

	assert.NoError(t, a.Handle(context.Background(), memberEvent(router.KindMemberAdd, amy)))

	gone := models.Member{ID: "gone", Username: "Gone"}
	assert.NoError(t, a.Handle(context.Background(), memberEvent(router.KindMemberAdd, gone)))
}
