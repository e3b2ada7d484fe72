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

func voiceEvent(member models.Member, before, after string) router.Event {
	return router.Event{
		Kind:    router.KindVoiceStateUpdate,
		GuildID: "g",
		Voice:   &models.VoiceChange{Member: member, Before: before, After: after},
	}
}

func TestVoiceLinkDiff(t *testing.T) {
	amy := models.Member{ID: "amy", Username: "Amy"}

	cases := []struct {
		name    string
		before  []string
		after   []string
		revoked []string
		granted []string
	}{
		{"overlap", []string{"A", "B"}, []string{"B", "C"}, []string{"A"}, []string{"C"}},
		{"disjoint", []string{"A"}, []string{"C", "D"}, []string{"A"}, []string{"C", "D"}},
		{"same set", []string{"A", "B"}, []string{"B", "A"}, nil, nil},
		{"join", nil, []string{"C"}, nil, []string{"C"}},
		{"leave", []string{"A"}, nil, []string{"A"}, nil},
		{"unlinked", nil, nil, nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv("g")
			e.store.links["v1"] = tc.before
			e.store.links["v2"] = tc.after
			for _, ch := range tc.before {
				require.NoError(t, e.platform.SetMemberOverwrite(context.Background(), ch, "amy", platform.Overwrite{Allow: platform.PermissionViewChannel}))
			}
			e.platform.sets = nil

			v := NewVoiceLinks(testLogger(), e.store, e.platform)
			require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "v1", "v2")))

			assert.ElementsMatch(t, tc.revoked, e.platform.deletes)
			assert.ElementsMatch(t, tc.granted, e.platform.sets)
			for _, ch := range tc.granted {
				o := e.platform.overwrites[ch]["amy"]
				assert.NotZero(t, o.Allow&platform.PermissionViewChannel)
			}
		})
	}
}

func TestVoiceLinkJoinFromNone(t *testing.T) {
	e := newEnv("g")
	e.store.links["v1"] = []string{"A"}

	v := NewVoiceLinks(testLogger(), e.store, e.platform)
	amy := models.Member{ID: "amy", Username: "Amy"}

	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "", "v1")))
	assert.Equal(t, []string{"A"}, e.platform.sets)

	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "v1", "")))
	assert.Equal(t, []string{"A"}, e.platform.deletes)
	assert.NotContains(t, e.platform.overwrites["A"], "amy")
}

func TestVoiceLinkIdempotent(t *testing.T) {
	e := newEnv("g")
	e.store.links["v1"] = []string{"A"}

	v := NewVoiceLinks(testLogger(), e.store, e.platform)
	amy := models.Member{ID: "amy", Username: "Amy"}

	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "", "v1")))
	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "", "v1")))
	assert.Len(t, e.platform.sets, 1)

	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "v1", "")))
	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "v1", "")))
	assert.Len(t, e.platform.deletes, 1)
}

func TestVoiceLinkKeepsOtherPermissions(t *testing.T) {
	e := newEnv("g")
	e.store.links["v1"] = []string{"A"}

	const sendMessages int64 = 1 << 11
	require.NoError(t, e.platform.SetMemberOverwrite(context.Background(), "A", "amy", platform.Overwrite{
		Allow: sendMessages,
		Deny:  platform.PermissionViewChannel,
	}))

	v := NewVoiceLinks(testLogger(), e.store, e.platform)
	require.NoError(t, v.Handle(context.Background(), voiceEvent(models.Member{ID: "amy", Username: "Amy"}, "", "v1")))

	o := e.platform.overwrites["A"]["amy"]
	assert.Equal(t, sendMessages|platform.PermissionViewChannel, o.Allow)
	assert.Zero(t, o.Deny)
}

func TestVoiceLinkSkips(t *testing.T) {
	e := newEnv("g")
	e.store.links["v1"] = []string{"A"}
	e.store.links["v2"] = []string{"B"}

	v := NewVoiceLinks(testLogger(), e.store, e.platform)

	bot := models.Member{ID: "other", Username: "Other", Bot: true}
	require.NoError(t, v.Handle(context.Background(), voiceEvent(bot, "v1", "v2")))

	// Mute toggles arrive as voice updates with the channel unchanged.
	amy := models.Member{ID: "amy", Username: "Amy"}
	require.NoError(t, v.Handle(context.Background(), voiceEvent(amy, "v1", "v1")))

	assert.Empty(t, e.platform.sets)
	assert.Empty(t, e.platform.deletes)
}

func TestVoiceLinkFetchesUnknownMember(t *testing.T) {
	e := newEnv("g")
	e.store.links["v1"] = []string{"A"}
	e.platform.setMember(models.Member{ID: "other", Username: "Other", Bot: true})

	v := NewVoiceLinks(testLogger(), e.store, e.platform)
	require.NoError(t, v.Handle(context.Background(), voiceEvent(models.Member{ID: "other"}, "", "v1")))

	assert.Empty(t, e.platform.sets)
}
