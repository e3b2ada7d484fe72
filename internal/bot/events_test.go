package bot

import (
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEvent(t *testing.T) {
	e, ok := messageEvent(&dg.MessageCreate{Message: &dg.Message{
		ID:        "m",
		GuildID:   "g",
		ChannelID: "c",
		Content:   "hi",
		Author:    &dg.User{ID: "u", Username: "amy"},
	}})
	require.True(t, ok)
	assert.Equal(t, router.KindMessageCreate, e.Kind)
	assert.Equal(t, "g", e.GuildID)
	assert.Equal(t, "hi", e.Message.Content)
	assert.Equal(t, "u", e.Message.Author.ID)

	_, ok = messageEvent(&dg.MessageCreate{Message: &dg.Message{ID: "m", Author: &dg.User{ID: "u"}}})
	assert.False(t, ok, "direct messages are not routed")
}

func TestMemberEvent(t *testing.T) {
	after := &dg.Member{GuildID: "g", Nick: "Zoe", Roles: []string{"r"}, User: &dg.User{ID: "u", Username: "!zoe"}}
	before := &dg.Member{GuildID: "g", User: &dg.User{ID: "u", Username: "!zoe"}}

	e, ok := memberEvent(router.KindMemberUpdate, after, before)
	require.True(t, ok)
	assert.Equal(t, "g", e.GuildID)
	assert.Equal(t, "Zoe", e.Member.Nick)
	require.NotNil(t, e.Before)
	assert.Empty(t, e.Before.Nick)

	e, ok = memberEvent(router.KindMemberAdd, after, nil)
	require.True(t, ok)
	assert.Nil(t, e.Before)

	_, ok = memberEvent(router.KindMemberRemove, &dg.Member{GuildID: "g"}, nil)
	assert.False(t, ok)
}

func TestVoiceEvent(t *testing.T) {
	e, ok := voiceEvent(&dg.VoiceStateUpdate{
		VoiceState:   &dg.VoiceState{GuildID: "g", UserID: "u", ChannelID: "v2"},
		BeforeUpdate: &dg.VoiceState{GuildID: "g", UserID: "u", ChannelID: "v1"},
	})
	require.True(t, ok)
	assert.Equal(t, router.KindVoiceStateUpdate, e.Kind)
	assert.Equal(t, "v1", e.Voice.Before)
	assert.Equal(t, "v2", e.Voice.After)
	assert.Equal(t, "u", e.Voice.Member.ID)

	_, ok = voiceEvent(&dg.VoiceStateUpdate{})
	assert.False(t, ok)
}

func TestCommandSetHash(t *testing.T) {
	a := []*dg.ApplicationCommand{{Name: "ping", Description: "Ping"}}
	b := []*dg.ApplicationCommand{{Name: "ping", Description: "Pong"}}

	ha, err := commandSetHash(a)
	require.NoError(t, err)
	again, err := commandSetHash(a)
	require.NoError(t, err)
	hb, err := commandSetHash(b)
	require.NoError(t, err)

	assert.Len(t, ha, 64)
	assert.Equal(t, ha, again)
	assert.NotEqual(t, ha, hb)
}

func TestLookupMatchesMetadata(t *testing.T) {
	for name, h := range lookup {
		assert.Equal(t, name, h.Metadata().Name)
	}
}
