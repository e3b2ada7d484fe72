package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/cache"
	"github.com/glotchimo/keeper/internal/database"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/handlers/commands"
	"github.com/glotchimo/keeper/internal/listeners"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/response"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

var lookup map[string]handlers.Handler = map[string]handlers.Handler{
	"ping":          &commands.Ping{},
	"prefix":        &commands.Prefix{},
	"autorole":      &commands.AutoRole{},
	"autoclean":     &commands.AutoClean{},
	"cleannames":    &commands.CleanNames{},
	"embedmessages": &commands.EmbedMessages{},
	"voicelink":     &commands.VoiceLink{},
	"selfrole":      &commands.SelfRole{},
	"assign":        &commands.Assign{},
	"pronoun":       &commands.Pronoun{},
	"emoji":         &commands.Emoji{},
	"steal":         &commands.Steal{},
	"emojilock":     &commands.EmojiLock{},
	"about":         &commands.About{},
	"sync":          &commands.Sync{},
}

const guildQueueSize = 1000

type Config struct {
	Debug         bool
	LogFile       string
	LogMaxSizeMB  int
	Token         string
	Intents       int
	DatabaseURL   string
	CacheURL      string
	MigrationsURL string
	ShardID       int
	ShardCount    int
	CacheTTL      time.Duration
	DefaultPrefix string
}

type GuildContext struct {
	Context context.Context
	Cancel  context.CancelFunc
	Events  chan GuildEvent
}

type Bot struct {
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	s  *dg.Session
	d  *database.Database
	c  *cache.Cache
	l  *slog.Logger
	r  *response.Responder
	p  *platform.Discord
	rt *router.Router
	n  *listeners.Nicknames

	locks    *utils.GuildLocks
	contexts map[string]*GuildContext
	logs     io.Closer
}

func NewBot(conf Config) (*Bot, error) {
	b := Bot{
		locks:    utils.NewGuildLocks(),
		contexts: make(map[string]*GuildContext),
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.ctx = ctx
	b.cancel = cancel

	b.l, b.logs = newLogger(conf)

	database, err := database.NewDatabase(b.l, conf.DatabaseURL, conf.MigrationsURL)
	if err != nil {
		return nil, errutil.With(err)
	}
	b.d = database

	session, err := dg.New("Bot " + conf.Token)
	if err != nil {
		return nil, errutil.With(err)
	}
	b.s = session

	b.s.Identify.Intents = dg.Intent(conf.Intents)

	b.s.ShardID = conf.ShardID
	b.s.ShardCount = conf.ShardCount
	b.l.Info("sharding enabled", "shard_id", conf.ShardID, "shard_count", conf.ShardCount)

	opts := []cache.Option{cache.WithTTL(conf.CacheTTL), cache.WithDefaultPrefix(conf.DefaultPrefix)}
	if conf.CacheURL != "" {
		remote, err := cache.NewRedisRemote(conf.CacheURL)
		if err != nil {
			return nil, errutil.With(err)
		}
		opts = append(opts, cache.WithRemote(remote))
	}
	b.c = cache.NewCache(b.l, database, opts...)

	b.p = platform.NewDiscord(b.s)
	b.r = response.NewSessionResponder(b.ctx, b.s, b.l)

	b.rt = router.New(b.l, b.c)
	b.n = listeners.Register(b.rt, listeners.Dependencies{
		Logger:   b.l,
		Cache:    b.c,
		Platform: b.p,
		Links:    b.d,
		Configs:  b.d,
	})

	b.s.AddHandler(func(s *dg.Session, r *dg.Ready) {
		b.l.Info("bot connected to gateway",
			"bot", fmt.Sprintf("%s#%s", r.User.Username, r.User.Discriminator),
			"guilds", len(s.State.Guilds),
			"version", utils.Version(),
			"shard_id", conf.ShardID,
			"shard_count", conf.ShardCount,
		)
	})

	b.s.AddHandler(func(s *dg.Session, g *dg.GuildCreate) { b.register(g.Guild) })
	b.s.AddHandler(func(s *dg.Session, g *dg.GuildDelete) { b.remove(g.Guild) })

	b.s.AddHandler(func(s *dg.Session, i *dg.InteractionCreate) {
		b.enqueue(i.GuildID, GuildEvent{Type: EventTypeInteraction, Interaction: i})
	})
	b.s.AddHandler(func(s *dg.Session, m *dg.MessageCreate) {
		if e, ok := messageEvent(m); ok {
			b.enqueue(e.GuildID, GuildEvent{Type: EventTypeGateway, Gateway: &e})
		}
	})
	b.s.AddHandler(func(s *dg.Session, m *dg.GuildMemberAdd) {
		if e, ok := memberEvent(router.KindMemberAdd, m.Member, nil); ok {
			b.enqueue(e.GuildID, GuildEvent{Type: EventTypeGateway, Gateway: &e})
		}
	})
	b.s.AddHandler(func(s *dg.Session, m *dg.GuildMemberUpdate) {
		if e, ok := memberEvent(router.KindMemberUpdate, m.Member, m.BeforeUpdate); ok {
			b.enqueue(e.GuildID, GuildEvent{Type: EventTypeGateway, Gateway: &e})
		}
	})
	b.s.AddHandler(func(s *dg.Session, m *dg.GuildMemberRemove) {
		if e, ok := memberEvent(router.KindMemberRemove, m.Member, nil); ok {
			b.enqueue(e.GuildID, GuildEvent{Type: EventTypeGateway, Gateway: &e})
		}
	})
	b.s.AddHandler(func(s *dg.Session, v *dg.VoiceStateUpdate) {
		if e, ok := voiceEvent(v); ok {
			b.enqueue(e.GuildID, GuildEvent{Type: EventTypeGateway, Gateway: &e})
		}
	})

	if err := b.s.Open(); err != nil {
		return nil, errutil.With(err)
	}

	go b.status()

	return &b, nil
}

func (b *Bot) Close() {
	defer b.logs.Close()
	defer b.s.Close()
	defer b.d.Close()
	defer b.c.Close()

	b.cancel()
}

func (b *Bot) status() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	s := 0
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			var msg string
			switch s {
			case 0:
				count, err := b.d.Count(b.ctx, models.TableGuildConfig, nil)
				if err != nil {
					b.l.Error("error counting known guilds", "error", err)
					continue
				}
				msg = fmt.Sprintf("Keeping %d servers tidy", count)

			case 1:
				count, err := b.d.Count(b.ctx, models.TableInteractions, sq.NotEq{"command": nil})
				if err != nil {
					b.l.Error("error counting interactions", "error", err)
					continue
				}
				msg = fmt.Sprintf("%d commands handled", count)
			}

			if err := b.s.UpdateStatusComplex(dg.UpdateStatusData{
				Status: string(dg.StatusOnline),
				Activities: []*dg.Activity{
					{
						Name:  b.s.State.User.Username,
						Type:  dg.ActivityTypeCustom,
						State: msg,
					},
				},
			}); err != nil {
				b.l.Error("error setting bot status", "error", err)
			}

			s = (s + 1) % 2
		}
	}
}

func (b *Bot) newGuildContext() *GuildContext {
	ctx, cancel := context.WithCancel(b.ctx)
	return &GuildContext{
		Context: ctx,
		Cancel:  cancel,
		Events:  make(chan GuildEvent, guildQueueSize),
	}
}

// dispatch drains one guild's queue. Gateway events are routed in arrival
// order; commands run on their own goroutine so a long command does not hold
// up the guild.
func (b *Bot) dispatch(guildID string, gc *GuildContext) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			b.l.Error("panic recovered", "guild", guildID, "recovered", r, "stack", string(stack))
			go b.dispatch(guildID, gc)
		}
	}()

	for {
		select {
		case <-gc.Context.Done():
			return
		case e := <-gc.Events:
			switch e.Type {
			case EventTypeGateway:
				if err := b.rt.Dispatch(gc.Context, *e.Gateway); err != nil {
					b.l.Error("error routing event", "event", e.Gateway.Kind.String(), "guild", guildID, "error", err)
				}

			case EventTypeInteraction:
				i := e.Interaction
				if i == nil {
					b.l.Warn("received nil interaction in dispatch")
					continue
				}
				b.interact(gc, guildID, i)
			}
		}
	}
}

func (b *Bot) interact(gc *GuildContext, guildID string, i *dg.InteractionCreate) {
	if err := b.d.Create(b.ctx, models.InteractionFromDiscord(utils.NewID(), i.Interaction)); err != nil {
		b.l.Warn("error storing interaction", "error", err)
	}

	if i.Type != dg.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	opts := utils.OptionsByName(data.Options)

	h, ok := lookup[data.Name]
	if !ok {
		b.r.Reject(i, utils.Failf(utils.ErrNotFound, "No registered command named %s", data.Name))
		return
	}

	g, err := b.d.GetGuildConfig(b.ctx, guildID)
	if err != nil {
		b.r.Reject(i, utils.Failure{
			Type:    utils.ErrInternal,
			Message: "Failed to fetch server settings",
			Data:    map[string]any{"error": err, "guild": guildID},
		})
		return
	}

	user := ""
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User.Username
	}
	b.l.Info("command issued", "user", user, "called", utils.FormatInteraction(b.s, i))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]
				b.l.Error("panic recovered", "command", data.Name, "guild", guildID, "recovered", r, "stack", string(stack))
			}
		}()

		if err := h.Handle(gc.Context, handlers.Dependencies{
			Session:     b.s,
			Database:    b.d,
			Cache:       b.c,
			Platform:    b.p,
			Responder:   b.r,
			Logger:      b.l,
			Nicknames:   b.n,
			Locks:       b.locks,
			Config:      g,
			Interaction: i,
			Options:     &opts,
		}); err != nil {
			b.l.Error("error handling command", "error", err, "command", data.Name, "guild", guildID)
			b.r.Fail(i, utils.AsFailure(err, "Failed to handle command"))
		}
	}()
}

// load uploads the guild's slash commands when the set changed since the last
// upload.
func (b *Bot) load(guildID string) {
	start := time.Now()

	g, err := b.d.GetGuildConfig(b.ctx, guildID)
	if err != nil {
		b.l.Error("error getting guild config", "error", err, "guild", guildID)
		return
	}

	var commands []*dg.ApplicationCommand
	for _, h := range lookup {
		cmd := h.Metadata()
		commands = append(commands, &cmd)
	}
	slices.SortFunc(commands, func(a, b *dg.ApplicationCommand) int {
		return strings.Compare(a.Name, b.Name)
	})

	for i, cmd := range commands {
		result := utils.ValidateCommand(cmd)
		if result.WasModified {
			commands[i] = result.Command
			b.l.Warn("command was modified during validation", "command", cmd.Name, "errors", result.Errors, "guild", guildID)
		}
	}

	newHash, err := commandSetHash(commands)
	if err != nil {
		b.l.Warn("error hashing command set", "error", err, "guild", guildID)
	}

	if newHash != "" && newHash == g.CommandSetHash {
		b.l.Info("command set unchanged", "guild", guildID)
		return
	}

	if _, err := b.s.ApplicationCommandBulkOverwrite(b.s.State.User.ID, guildID, commands, dg.WithContext(b.ctx)); err != nil {
		b.l.Error("error loading guild commands", "error", err, "guild", guildID)
		return
	}

	if err := b.d.SetField(b.ctx, guildID, models.FieldCommandSetHash, newHash); err != nil {
		b.l.Warn("error updating command set hash", "error", err, "guild", guildID, "hash", newHash)
	}

	b.l.Info("command set loaded", "loaded", len(commands), "guild", guildID, "duration", time.Since(start))
}

func (b *Bot) enqueue(guildID string, event GuildEvent) {
	b.mu.RLock()
	ctx, ok := b.contexts[guildID]
	b.mu.RUnlock()

	if !ok {
		b.l.Warn("attempted to enqueue event for unknown guild", "guild", guildID)
		return
	}

	select {
	case ctx.Events <- event:
	case <-ctx.Context.Done():
		b.l.Debug("dropped event for cancelled guild context", "guild", guildID)
	default:
		b.l.Warn("event channel full, dropping event", "guild", guildID)
	}
}

func (b *Bot) register(g *dg.Guild) {
	if err := b.c.EnsureGuild(b.ctx, g.ID); err != nil {
		b.l.Error("error storing guild", "guild", g.ID, "error", err)
		return
	}

	b.mu.Lock()
	if existing, ok := b.contexts[g.ID]; ok {
		existing.Cancel()
	}
	guildCtx := b.newGuildContext()
	b.contexts[g.ID] = guildCtx
	b.mu.Unlock()

	b.l.Info("registered guild", "id", g.ID, "name", g.Name)

	go b.load(g.ID)
	go b.dispatch(g.ID, guildCtx)
	go b.monitor(g.ID, guildCtx)
}

func (b *Bot) remove(g *dg.Guild) {
	if g.Unavailable {
		b.l.Warn("guild unavailable", "id", g.ID)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if guildCtx, ok := b.contexts[g.ID]; ok {
		guildCtx.Cancel()
		delete(b.contexts, g.ID)
	}

	b.l.Info("removed guild", "id", g.ID)
}

func (b *Bot) monitor(guildID string, ctx *GuildContext) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastWarningTime time.Time
	var consecutiveWarnings int

	for {
		select {
		case <-ctx.Context.Done():
			return
		case <-ticker.C:
			currentLen := len(ctx.Events)
			capacity := cap(ctx.Events)
			fillPercentage := float64(currentLen) / float64(capacity) * 100

			if fillPercentage <= 60 {
				consecutiveWarnings = 0
				continue
			}

			now := time.Now()
			if now.Sub(lastWarningTime) > 5*time.Minute {
				consecutiveWarnings = 0
				lastWarningTime = now
			}

			consecutiveWarnings++

			b.l.Warn("event channel filling up",
				"guild", guildID,
				"size", currentLen,
				"capacity", capacity,
				"percentage", fmt.Sprintf("%.1f%%", fillPercentage),
				"consecutive_warnings", consecutiveWarnings)

			if consecutiveWarnings >= 3 {
				b.l.Error("potential stuck handler detected; event channel consistently full",
					"guild", guildID,
					"size", currentLen,
					"capacity", capacity,
					"warnings", consecutiveWarnings)
			}
		}
	}
}
