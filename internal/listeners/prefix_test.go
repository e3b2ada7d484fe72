package listeners

import (
	"context"
	"testing"

	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mention(content string) router.Event {
	return router.Event{
		Kind:    router.KindMessageCreate,
		GuildID: "g",
		Message: &models.Message{ID: "m", GuildID: "g", ChannelID: "c", Content: content, Author: models.Member{ID: "amy"}},
	}
}

func TestPrefixReply(t *testing.T) {
	ctx := context.Background()
	e := newEnv("g")
	pr := NewPrefixReply(e.cache, e.platform)

	require.NoError(t, pr.Handle(ctx, mention("<@bot>")))
	require.NoError(t, e.cache.SetPrefix(ctx, "g", "!"))
	require.NoError(t, pr.Handle(ctx, mention("  <@!bot> ")))

	require.Len(t, e.platform.replies, 2)
	require.Len(t, e.platform.replies[0].Embeds, 1)
	assert.Equal(t, "Prefix", e.platform.replies[0].Embeds[0].Title)
	assert.Equal(t, "My prefix is `;`.", e.platform.replies[0].Embeds[0].Description)
	assert.Equal(t, "My prefix is `!`.", e.platform.replies[1].Embeds[0].Description)
	assert.Equal(t, "m", e.platform.replies[0].Message)
}

func TestPrefixReplyIgnoresOtherMessages(t *testing.T) {
	ctx := context.Background()
	e := newEnv("g")
	pr := NewPrefixReply(e.cache, e.platform)

	require.NoError(t, pr.Handle(ctx, mention("<@bot> hi")))
	require.NoError(t, pr.Handle(ctx, mention("<@someone>")))
	require.NoError(t, pr.Handle(ctx, mention("hello")))

	bot := mention("<@bot>")
	bot.Message.Author.Bot = true
	require.NoError(t, pr.Handle(ctx, bot))

	assert.Empty(t, e.platform.replies)
}

func TestRegisterWiresListeners(t *testing.T) {
	ctx := context.Background()
	e := newEnv("g")
	require.NoError(t, e.cache.SetAutoClean(ctx, "g", models.AutoClean{Dehoist: true}))
	require.NoError(t, e.cache.SetAutoRole(ctx, "g", "member"))

	r := router.New(testLogger(), e.cache)
	n := Register(r, Dependencies{
		Logger:   testLogger(),
		Cache:    e.cache,
		Platform: e.platform,
		Links:    e.store,
		Configs:  e.store,
	})
	require.NotNil(t, n)

	zoe := models.Member{ID: "zoe", Username: "!Zoe"}
	e.platform.setMember(zoe)
	require.NoError(t, r.Dispatch(ctx, router.Event{Kind: router.KindMemberAdd, GuildID: "g", Member: &zoe}))

	assert.Equal(t, []edit{{Member: "zoe", Nick: "Zoe"}}, e.platform.edits)
	assert.Equal(t, []string{"zoe:member"}, e.platform.adds)

	require.NoError(t, r.Dispatch(ctx, mention("<@bot>")))
	assert.Len(t, e.platform.replies, 1)
}
