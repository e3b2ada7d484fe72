package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/glotchimo/keeper/internal/models"
	"github.com/graxinc/errutil"
)

const DefaultTTL = 900 * time.Second

// Store is the system of record behind the cache.
type Store interface {
	EnsureGuild(ctx context.Context, guildID string) error
	GetGuildConfig(ctx context.Context, guildID string) (models.GuildConfig, error)
	SetFields(ctx context.Context, guildID string, fields map[models.Field]any) error
	CleanedNicknames(ctx context.Context, guildID string) (map[string]models.CleanedNickname, error)
	PutCleanedNickname(ctx context.Context, c models.CleanedNickname) error
	DeleteCleanedNickname(ctx context.Context, guildID, memberID string) error
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithDefaultPrefix(prefix string) Option {
	return func(c *Cache) { c.defaultPrefix = prefix }
}

// WithRemote adds a shared tier consulted between the local maps and the
// store. Failures of the tier are logged and skipped.
func WithRemote(r Remote) Option {
	return func(c *Cache) { c.r = r }
}

// Cache holds the hot per-guild settings. Each field is cached under its own
// key, so invalidating one leaves the others in place. Writes go to the store
// first and then replace the cached value.
type Cache struct {
	l *slog.Logger
	d Store
	r Remote
	b *Breaker

	ttl           time.Duration
	now           func() time.Time
	defaultPrefix string

	// nickMu serializes read-modify-write of cached nickname maps.
	nickMu sync.Mutex

	prefixes  *TTL[string, string]
	autoClean *TTL[string, models.AutoClean]
	autoRoles *TTL[string, string]
	nicknames *TTL[string, map[string]models.CleanedNickname]
}

func NewCache(l *slog.Logger, d Store, opts ...Option) *Cache {
	c := &Cache{
		l:             l,
		d:             d,
		ttl:           DefaultTTL,
		now:           time.Now,
		defaultPrefix: models.DefaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.b = NewBreaker(5, 30*time.Second, c.now)
	c.prefixes = NewTTL[string, string](c.ttl, 0, c.now)
	c.autoClean = NewTTL[string, models.AutoClean](c.ttl, 0, c.now)
	c.autoRoles = NewTTL[string, string](c.ttl, 0, c.now)
	c.nicknames = NewTTL[string, map[string]models.CleanedNickname](c.ttl, 0, c.now)

	return c
}

func (c *Cache) Close() error {
	if c.r == nil {
		return nil
	}
	return c.r.Close()
}

// EnsureGuild makes sure the guild has a config row. A guild whose prefix is
// cached is known to exist and costs no write.
func (c *Cache) EnsureGuild(ctx context.Context, guildID string) error {
	if _, ok := c.prefixes.Get(guildID); ok {
		return nil
	}

	if err := c.d.EnsureGuild(ctx, guildID); err != nil {
		return errutil.With(err)
	}

	if _, err := c.Prefix(ctx, guildID); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (c *Cache) Prefix(ctx context.Context, guildID string) (string, error) {
	return readThrough(ctx, c, c.prefixes, models.FieldPrefix, guildID, func(ctx context.Context) (string, error) {
		g, err := c.d.GetGuildConfig(ctx, guildID)
		if err != nil {
			return "", err
		}
		return c.resolvePrefix(g.Prefix), nil
	})
}

// SetPrefix stores a new prefix; an empty prefix resets it to the default.
func (c *Cache) SetPrefix(ctx context.Context, guildID, prefix string) error {
	if err := c.d.SetFields(ctx, guildID, map[models.Field]any{models.FieldPrefix: prefix}); err != nil {
		return errutil.With(err)
	}

	writeThrough(ctx, c, c.prefixes, models.FieldPrefix, guildID, c.resolvePrefix(prefix))
	return nil
}

func (c *Cache) AutoClean(ctx context.Context, guildID string) (models.AutoClean, error) {
	return readThrough(ctx, c, c.autoClean, models.FieldCleanDehoist, guildID, func(ctx context.Context) (models.AutoClean, error) {
		g, err := c.d.GetGuildConfig(ctx, guildID)
		if err != nil {
			return models.AutoClean{}, err
		}
		return g.AutoClean, nil
	})
}

func (c *Cache) SetAutoClean(ctx context.Context, guildID string, flags models.AutoClean) error {
	if err := c.d.SetFields(ctx, guildID, map[models.Field]any{
		models.FieldCleanDehoist:   flags.Dehoist,
		models.FieldCleanNormalize: flags.Normalize,
	}); err != nil {
		return errutil.With(err)
	}

	writeThrough(ctx, c, c.autoClean, models.FieldCleanDehoist, guildID, flags)
	return nil
}

// AutoRole returns the configured auto-role ID, empty when none is set.
func (c *Cache) AutoRole(ctx context.Context, guildID string) (string, error) {
	return readThrough(ctx, c, c.autoRoles, models.FieldAutoRole, guildID, func(ctx context.Context) (string, error) {
		g, err := c.d.GetGuildConfig(ctx, guildID)
		if err != nil {
			return "", err
		}
		return g.AutoRoleID, nil
	})
}

// SetAutoRole stores the auto-role ID; an empty ID clears it.
func (c *Cache) SetAutoRole(ctx context.Context, guildID, roleID string) error {
	if err := c.d.SetFields(ctx, guildID, map[models.Field]any{models.FieldAutoRole: roleID}); err != nil {
		return errutil.With(err)
	}

	writeThrough(ctx, c, c.autoRoles, models.FieldAutoRole, guildID, roleID)
	return nil
}

// CleanedNicknames maps member IDs to the nickname records the bot keeps for
// them. The returned map is a copy.
func (c *Cache) CleanedNicknames(ctx context.Context, guildID string) (map[string]models.CleanedNickname, error) {
	nicks, err := readThrough(ctx, c, c.nicknames, models.FieldCleanedNicknames, guildID, func(ctx context.Context) (map[string]models.CleanedNickname, error) {
		nicks, err := c.d.CleanedNicknames(ctx, guildID)
		if err != nil {
			return nil, err
		}
		if nicks == nil {
			nicks = map[string]models.CleanedNickname{}
		}
		return nicks, nil
	})
	if err != nil {
		return nil, err
	}

	return maps.Clone(nicks), nil
}

func (c *Cache) PutCleanedNickname(ctx context.Context, rec models.CleanedNickname) error {
	if err := c.d.PutCleanedNickname(ctx, rec); err != nil {
		return errutil.With(err)
	}

	c.updateNicknames(ctx, rec.GuildID, func(m map[string]models.CleanedNickname) { m[rec.MemberID] = rec })
	return nil
}

func (c *Cache) DeleteCleanedNickname(ctx context.Context, guildID, memberID string) error {
	if err := c.d.DeleteCleanedNickname(ctx, guildID, memberID); err != nil {
		return errutil.With(err)
	}

	c.updateNicknames(ctx, guildID, func(m map[string]models.CleanedNickname) { delete(m, memberID) })
	return nil
}

// Invalidate drops a cached field so the next read goes to the store.
func (c *Cache) Invalidate(ctx context.Context, guildID string, field models.Field) {
	switch field {
	case models.FieldPrefix:
		c.prefixes.Delete(guildID)
	case models.FieldCleanDehoist, models.FieldCleanNormalize:
		c.autoClean.Delete(guildID)
		field = models.FieldCleanDehoist
	case models.FieldAutoRole:
		c.autoRoles.Delete(guildID)
	case models.FieldCleanedNicknames:
		c.nicknames.Delete(guildID)
	default:
		return
	}

	c.remoteDelete(ctx, remoteKey(field, guildID))
}

func (c *Cache) resolvePrefix(prefix string) string {
	if prefix == "" {
		return c.defaultPrefix
	}
	return prefix
}

// updateNicknames applies a change to a cached nickname map in place. Other
// shards drop their copy through the shared tier.
func (c *Cache) updateNicknames(ctx context.Context, guildID string, fn func(map[string]models.CleanedNickname)) {
	c.nickMu.Lock()
	c.nicknames.Update(guildID, func(m map[string]models.CleanedNickname) map[string]models.CleanedNickname {
		m = maps.Clone(m)
		fn(m)
		return m
	})
	c.nickMu.Unlock()

	c.remoteDelete(ctx, remoteKey(models.FieldCleanedNicknames, guildID))
}

func remoteKey(field models.Field, guildID string) string {
	return fmt.Sprintf("guild:%s:%s", guildID, field)
}

func readThrough[V any](ctx context.Context, c *Cache, local *TTL[string, V], field models.Field, guildID string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := local.Get(guildID); ok {
		return v, nil
	}

	key := remoteKey(field, guildID)
	if data, expiresAt, ok := c.remoteGet(ctx, key); ok {
		var v V
		if err := json.Unmarshal(data, &v); err == nil {
			v, _ = local.AddUntil(guildID, v, expiresAt)
			return v, nil
		}
		c.l.Warn("discarding undecodable cache entry", "key", key)
	}

	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, errutil.With(err)
	}

	// A write-through that landed while the load ran is newer than what was
	// loaded, so it wins.
	if cur, added := local.Add(guildID, v); !added {
		return cur, nil
	}
	c.remoteSet(ctx, key, v)

	return v, nil
}

func writeThrough[V any](ctx context.Context, c *Cache, local *TTL[string, V], field models.Field, guildID string, v V) {
	local.Set(guildID, v)
	c.remoteSet(ctx, remoteKey(field, guildID), v)
}

func (c *Cache) remoteGet(ctx context.Context, key string) ([]byte, time.Time, bool) {
	if c.r == nil || !c.b.Allow() {
		return nil, time.Time{}, false
	}

	data, expiresAt, err := c.r.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		c.b.Success()
		return nil, time.Time{}, false
	}
	if err != nil {
		c.b.Failure()
		c.l.Warn("error reading shared cache", "key", key, "error", err, "breaker", c.b.State())
		return nil, time.Time{}, false
	}

	c.b.Success()
	return data, expiresAt, true
}

func (c *Cache) remoteSet(ctx context.Context, key string, v any) {
	if c.r == nil || !c.b.Allow() {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.l.Error("error encoding cache entry", "key", key, "error", err)
		return
	}

	if err := c.r.Set(ctx, key, data, c.ttl); err != nil {
		c.b.Failure()
		c.l.Warn("error writing shared cache", "key", key, "error", err, "breaker", c.b.State())
		return
	}
	c.b.Success()
}

func (c *Cache) remoteDelete(ctx context.Context, key string) {
	if c.r == nil || !c.b.Allow() {
		return
	}

	if err := c.r.Delete(ctx, key); err != nil {
		c.b.Failure()
		c.l.Warn("error deleting shared cache entry", "key", key, "error", err, "breaker", c.b.State())
		return
	}
	c.b.Success()
}
