package listeners

import (
	"context"
	"strings"
	"testing"

	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nicknameEnv(t *testing.T, flags models.AutoClean) (env, *Nicknames) {
	t.Helper()
	e := newEnv("g")
	require.NoError(t, e.cache.SetAutoClean(context.Background(), "g", flags))
	return e, NewNicknames(testLogger(), e.cache, e.platform)
}

func memberEvent(kind router.Kind, m models.Member) router.Event {
	return router.Event{Kind: kind, GuildID: "g", Member: &m}
}

func updateEvent(before, after models.Member) router.Event {
	return router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &before}
}

// manage records a nickname as set by the bot, cleaned from base.
func manage(t *testing.T, e env, memberID, nick, base string) {
	t.Helper()
	require.NoError(t, e.cache.PutCleanedNickname(context.Background(), models.CleanedNickname{
		GuildID:  "g",
		MemberID: memberID,
		Nickname: nick,
		Base:     base,
	}))
}

func TestNicknameCleansHoistedJoin(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})

	zoe := models.Member{ID: "zoe", Username: "⭐Zoe", Roles: []string{"member"}}
	e.platform.setMember(zoe)

	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, zoe)))

	assert.Equal(t, []edit{{Member: "zoe", Nick: "Zoe"}}, e.platform.edits)
	nick, ok := e.store.record("g", "zoe")
	require.True(t, ok)
	assert.Equal(t, "Zoe", nick)

	records, err := e.cache.CleanedNicknames(ctx, "g")
	require.NoError(t, err)
	require.Contains(t, records, "zoe")
	assert.Equal(t, "Zoe", records["zoe"].Nickname)
	assert.Equal(t, "⭐Zoe", records["zoe"].Base)
}

func TestNicknameReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})

	zoe := models.Member{ID: "zoe", Username: "!!Zoe"}
	e.platform.setMember(zoe)

	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, zoe)))
	require.Len(t, e.platform.edits, 1)

	// The gateway echoes the bot's own edit back as an update.
	after := zoe
	after.Nick = "Zoe"
	ev := router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &zoe}
	require.NoError(t, n.Handle(ctx, ev))
	require.NoError(t, n.Handle(ctx, ev))

	assert.Len(t, e.platform.edits, 1)
	_, ok := e.store.record("g", "zoe")
	assert.True(t, ok)
}

func TestNicknameMemberTakesOver(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})
	manage(t, e, "zoe", "Zoe", "!!Zoe")

	before := models.Member{ID: "zoe", Username: "!!Zoe", Nick: "Zoe"}
	after := before
	after.Nick = "Bob"
	e.platform.setMember(after)

	require.NoError(t, n.Handle(ctx, router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &before}))

	assert.Empty(t, e.platform.edits)
	_, ok := e.store.record("g", "zoe")
	assert.False(t, ok)

	records, err := e.cache.CleanedNicknames(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNicknameFollowsUsernameChange(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})
	manage(t, e, "zoe", "Zoe", "!!Zoe")

	before := models.Member{ID: "zoe", Username: "!!Zoe", Nick: "Zoe"}
	after := before
	after.Username = "!!Zed"
	e.platform.setMember(after)

	require.NoError(t, n.Handle(ctx, router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &before}))

	assert.Equal(t, []edit{{Member: "zoe", Nick: "Zed"}}, e.platform.edits)
	rec, _ := e.store.entry("g", "zoe")
	assert.Equal(t, "Zed", rec.Nickname)
	assert.Equal(t, "!!Zed", rec.Base)
}

func TestNicknameResetsWhenUsernameIsClean(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})
	manage(t, e, "zoe", "Zoe", "!!Zoe")

	before := models.Member{ID: "zoe", Username: "!!Zoe", Nick: "Zoe"}
	after := before
	after.Username = "Zoey"
	e.platform.setMember(after)

	require.NoError(t, n.Handle(ctx, router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &before}))

	assert.Equal(t, []edit{{Member: "zoe", Nick: ""}}, e.platform.edits)
	_, ok := e.store.record("g", "zoe")
	assert.False(t, ok)
}

func TestNicknameKeepsCleanedChosenNickname(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})

	plain := models.Member{ID: "dave", Username: "dave"}
	hoisted := plain
	hoisted.Nick = "!!Cool"
	e.platform.setMember(hoisted)

	require.NoError(t, n.Handle(ctx, updateEvent(plain, hoisted)))
	require.Equal(t, []edit{{Member: "dave", Nick: "Cool"}}, e.platform.edits)

	// The gateway echoes the bot's own edit back as an update.
	cleaned := hoisted
	cleaned.Nick = "Cool"
	require.NoError(t, n.Handle(ctx, updateEvent(hoisted, cleaned)))
	require.NoError(t, n.Handle(ctx, updateEvent(hoisted, cleaned)))

	assert.Len(t, e.platform.edits, 1)
	rec, ok := e.store.entry("g", "dave")
	require.True(t, ok)
	assert.Equal(t, "Cool", rec.Nickname)
	assert.False(t, rec.FromBase())

	for range 2 {
		counts, err := n.ReconcileAll(ctx, "g", models.AutoClean{Dehoist: true})
		require.NoError(t, err)
		assert.Zero(t, counts[OutcomeRenamed])
		assert.Zero(t, counts[OutcomeReset])
	}
	assert.Len(t, e.platform.edits, 1)
}

func TestNicknameChosenSurvivesUsernameChange(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})
	manage(t, e, "dave", "Cool", "")

	before := models.Member{ID: "dave", Username: "dave", Nick: "Cool"}
	after := before
	after.Username = "!!dave"
	e.platform.setMember(after)

	require.NoError(t, n.Handle(ctx, updateEvent(before, after)))

	assert.Empty(t, e.platform.edits)
	nick, ok := e.store.record("g", "dave")
	require.True(t, ok)
	assert.Equal(t, "Cool", nick)
}

func TestReconcileAllTwiceWritesOnce(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{})

	e.platform.setMember(models.Member{ID: "zoe", Username: "!!Zoe"})
	e.platform.setMember(models.Member{ID: "dave", Username: "dave", Nick: "!!Cool"})

	counts, err := n.ReconcileAll(ctx, "g", models.AutoClean{Dehoist: true})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[OutcomeRenamed])

	counts, err = n.ReconcileAll(ctx, "g", models.AutoClean{Dehoist: true})
	require.NoError(t, err)
	assert.Zero(t, counts[OutcomeRenamed])
	assert.Zero(t, counts[OutcomeReset])
	assert.Equal(t, 2, counts[OutcomeUnchanged])

	assert.ElementsMatch(t, []edit{{Member: "zoe", Nick: "Zoe"}, {Member: "dave", Nick: "Cool"}}, e.platform.edits)
}

func TestNicknameIgnoresUnrelatedUpdates(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})

	before := models.Member{ID: "zoe", Username: "!!Zoe"}
	after := before
	after.Roles = []string{"member"}
	e.platform.setMember(after)

	require.NoError(t, n.Handle(ctx, router.Event{Kind: router.KindMemberUpdate, GuildID: "g", Member: &after, Before: &before}))
	assert.Empty(t, e.platform.edits)
}

func TestNicknameDisabled(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{})

	zoe := models.Member{ID: "zoe", Username: "!!Zoe"}
	e.platform.setMember(zoe)

	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, zoe)))
	assert.Empty(t, e.platform.edits)
}

func TestNicknameSkips(t *testing.T) {
	cases := map[string]models.Member{
		"bot":        {ID: "other-bot", Username: "!!Bot", Bot: true},
		"owner":      {ID: "owner", Username: "!!Owner"},
		"outranks":   {ID: "mod", Username: "!!Mod", Roles: []string{"admin"}},
		"same level": {ID: "peer", Username: "!!Peer", Roles: []string{"keeper"}},
	}

	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e, n := nicknameEnv(t, models.AutoClean{Dehoist: true, Normalize: true})
			e.platform.setMember(m)

			require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, m)))
			assert.Empty(t, e.platform.edits)
			_, ok := e.store.record("g", m.ID)
			assert.False(t, ok)
		})
	}
}

func TestNicknameToleratesRaces(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})

	zoe := models.Member{ID: "zoe", Username: "!!Zoe"}
	e.platform.setMember(zoe)
	e.platform.editErr = platform.ErrPermissionDenied

	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, zoe)))
	_, ok := e.store.record("g", "zoe")
	assert.False(t, ok)

	gone := models.Member{ID: "gone", Username: "!!Gone"}
	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, gone)))
}

func TestNicknameForgetsOnRemove(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Dehoist: true})
	manage(t, e, "zoe", "Zoe", "!!Zoe")

	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberRemove, models.Member{ID: "zoe"})))

	_, ok := e.store.record("g", "zoe")
	assert.False(t, ok)
	records, err := e.cache.CleanedNicknames(ctx, "g")
	require.NoError(t, err)
	assert.NotContains(t, records, "zoe")
}

func TestNicknameNormalizesAndTruncates(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{Normalize: true})

	long := models.Member{ID: "long", Username: strings.Repeat("\uff21", 40)}
	lig := models.Member{ID: "lig", Username: "ﬁona"}
	e.platform.setMember(long)
	e.platform.setMember(lig)

	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, long)))
	require.NoError(t, n.Handle(ctx, memberEvent(router.KindMemberAdd, lig)))

	require.Len(t, e.platform.edits, 2)
	assert.Equal(t, strings.Repeat("A", maxNicknameLength), e.platform.edits[0].Nick)
	assert.Equal(t, "fiona", e.platform.edits[1].Nick)
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	e, n := nicknameEnv(t, models.AutoClean{})
	manage(t, e, "bob", "Bob", "!!Bob")

	e.platform.setMember(models.Member{ID: "zoe", Username: "!!Zoe"})
	e.platform.setMember(models.Member{ID: "amy", Username: "Amy"})
	e.platform.setMember(models.Member{ID: "bob", Username: "!!Bob", Nick: "Robert"})
	e.platform.setMember(models.Member{ID: "owner", Username: "!!Owner"})

	counts, err := n.ReconcileAll(ctx, "g", models.AutoClean{Dehoist: true})
	require.NoError(t, err)

	assert.Equal(t, 1, counts[OutcomeRenamed])
	assert.Equal(t, 1, counts[OutcomeReleased])
	assert.Equal(t, 1, counts[OutcomeUnchanged])
	// The owner and the bot itself.
	assert.Equal(t, 2, counts[OutcomeSkipped])

	nick, ok := e.store.record("g", "zoe")
	require.True(t, ok)
	assert.Equal(t, "Zoe", nick)
	_, ok = e.store.record("g", "bob")
	assert.False(t, ok)
}

func TestReconcileAllDisabled(t *testing.T) {
	e, n := nicknameEnv(t, models.AutoClean{})
	e.platform.setMember(models.Member{ID: "zoe", Username: "!!Zoe"})

	counts, err := n.ReconcileAll(context.Background(), "g", models.AutoClean{})
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.Empty(t, e.platform.edits)
}
