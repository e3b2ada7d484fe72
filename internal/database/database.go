package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/graxinc/errutil"
	"github.com/lib/pq"
)

type Database struct {
	l       *slog.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewDatabase(l *slog.Logger, databaseURL, migrationsURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errutil.With(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	cache := sq.NewStmtCache(db)
	database := Database{l: l, db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(cache)}

	if err := database.Migrate(migrationsURL, databaseURL); err != nil {
		return nil, errutil.With(err)
	}

	return &database, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// Ping reports the round trip to the database.
func (db *Database) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := db.db.PingContext(ctx); err != nil {
		return 0, errutil.With(err)
	}
	return time.Since(start), nil
}

func (db *Database) Migrate(migrationsURL, databaseURL string) error {
	m, err := migrate.New(migrationsURL, databaseURL)
	if err != nil {
		return errutil.With(err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errutil.With(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errutil.With(err)
	}

	db.l.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}

func (db *Database) Create(ctx context.Context, m models.Mappable) error {
	data := m.Map()
	data["created"] = time.Now().UTC()
	q := db.builder.
		Insert(string(m.Table())).
		SetMap(data)

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) Update(ctx context.Context, table models.Table, where sq.Sqlizer, updates map[string]any) (int64, error) {
	updates["updated"] = time.Now().UTC()
	q := db.builder.
		Update(string(table)).
		SetMap(updates).
		Where(where)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return 0, errutil.With(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errutil.With(err)
	}

	return n, nil
}

func (db *Database) Delete(ctx context.Context, table models.Table, where sq.Sqlizer) (int64, error) {
	q := db.builder.
		Delete(string(table)).
		Where(where)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return 0, errutil.With(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errutil.With(err)
	}

	return n, nil
}

func (db *Database) Count(ctx context.Context, table models.Table, where sq.Sqlizer) (int, error) {
	var count int

	q := db.builder.
		Select("COUNT(*)").
		From(string(table))
	if where != nil {
		q = q.Where(where)
	}

	if err := q.QueryRowContext(ctx).Scan(&count); err != nil {
		return count, errutil.With(err)
	}

	return count, nil
}

// EnsureGuild inserts an empty config row for the guild if none exists.
func (db *Database) EnsureGuild(ctx context.Context, guildID string) error {
	g := models.DefaultGuildConfig(guildID)
	data := g.Map()
	data["created"] = time.Now().UTC()

	q := db.builder.
		Insert(string(g.Table())).
		SetMap(data).
		Suffix("ON CONFLICT (guild_id) DO NOTHING")

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

// GetGuildConfig returns the stored config, or the defaults when the guild has
// no row yet. An unset prefix is returned empty.
func (db *Database) GetGuildConfig(ctx context.Context, guildID string) (models.GuildConfig, error) {
	g := models.GuildConfig{GuildID: guildID}
	var prefix, autorole sql.NullString

	q := db.builder.
		Select(
			"prefix",
			"embed_messages",
			"clean_dehoist",
			"clean_normalize",
			"autorole_id",
			"selfroles",
			"selfrole_pronoun",
			"command_set_hash",
			"created",
			"updated").
		From(string(models.TableGuildConfig)).
		Where(sq.Eq{"guild_id": guildID})

	err := q.QueryRowContext(ctx).Scan(
		&prefix,
		&g.EmbedMessages,
		&g.AutoClean.Dehoist,
		&g.AutoClean.Normalize,
		&autorole,
		pq.Array(&g.SelfRoles),
		&g.PronounRoles,
		&g.CommandSetHash,
		&g.Created,
		&g.Updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultGuildConfig(guildID), nil
	}
	if err != nil {
		return g, errutil.Wrap(err)
	}

	g.Prefix = prefix.String
	g.AutoRoleID = autorole.String

	return g, nil
}

// SetFields writes the given guild_config columns in one statement, creating
// the row first if needed.
func (db *Database) SetFields(ctx context.Context, guildID string, fields map[models.Field]any) error {
	if err := db.EnsureGuild(ctx, guildID); err != nil {
		return errutil.With(err)
	}

	updates := make(map[string]any, len(fields))
	for f, v := range fields {
		switch f {
		case models.FieldAutoRole, models.FieldPrefix:
			if s, ok := v.(string); ok && s == "" {
				v = nil
			}
		case models.FieldSelfRoles:
			if ids, ok := v.([]string); ok {
				if ids == nil {
					ids = []string{}
				}
				v = pq.Array(ids)
			}
		}
		updates[string(f)] = v
	}

	if _, err := db.Update(ctx, models.TableGuildConfig, sq.Eq{"guild_id": guildID}, updates); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) SetField(ctx context.Context, guildID string, field models.Field, value any) error {
	return db.SetFields(ctx, guildID, map[models.Field]any{field: value})
}

// AddSelfRole reports whether the role was added, false if it already was
// self-assignable.
func (db *Database) AddSelfRole(ctx context.Context, guildID, roleID string) (bool, error) {
	if err := db.EnsureGuild(ctx, guildID); err != nil {
		return false, errutil.With(err)
	}

	n, err := db.Update(ctx, models.TableGuildConfig,
		sq.And{
			sq.Eq{"guild_id": guildID},
			sq.Expr("NOT (?::text = ANY(selfroles))", roleID),
		},
		map[string]any{"selfroles": sq.Expr("array_append(selfroles, ?::text)", roleID)})
	if err != nil {
		return false, errutil.With(err)
	}

	return n > 0, nil
}

func (db *Database) RemoveSelfRole(ctx context.Context, guildID, roleID string) (bool, error) {
	n, err := db.Update(ctx, models.TableGuildConfig,
		sq.And{
			sq.Eq{"guild_id": guildID},
			sq.Expr("?::text = ANY(selfroles)", roleID),
		},
		map[string]any{"selfroles": sq.Expr("array_remove(selfroles, ?::text)", roleID)})
	if err != nil {
		return false, errutil.With(err)
	}

	return n > 0, nil
}

// SetSelfRoles replaces the self-assignable set, used to prune roles that no
// longer exist.
func (db *Database) SetSelfRoles(ctx context.Context, guildID string, roleIDs []string) error {
	return db.SetField(ctx, guildID, models.FieldSelfRoles, roleIDs)
}

func (db *Database) SelfRoles(ctx context.Context, guildID string) ([]string, error) {
	g, err := db.GetGuildConfig(ctx, guildID)
	if err != nil {
		return nil, errutil.With(err)
	}
	return g.SelfRoles, nil
}

func (db *Database) EmbedMessages(ctx context.Context, guildID string) (bool, error) {
	g, err := db.GetGuildConfig(ctx, guildID)
	if err != nil {
		return false, errutil.With(err)
	}
	return g.EmbedMessages, nil
}

func (db *Database) CleanedNicknames(ctx context.Context, guildID string) (map[string]models.CleanedNickname, error) {
	q := db.builder.
		Select("member_id", "nickname", "base", "created").
		From(string(models.TableCleanedNicknames)).
		Where(sq.Eq{"guild_id": guildID})

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, errutil.With(err)
	}
	defer rows.Close()

	nicks := make(map[string]models.CleanedNickname)
	for rows.Next() {
		c := models.CleanedNickname{GuildID: guildID}
		if err := rows.Scan(&c.MemberID, &c.Nickname, &c.Base, &c.Created); err != nil {
			return nil, errutil.With(err)
		}
		nicks[c.MemberID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.With(err)
	}

	return nicks, nil
}

// PutCleanedNickname records a nickname the bot set, creating the guild's
// config row first when the guild has none yet.
func (db *Database) PutCleanedNickname(ctx context.Context, c models.CleanedNickname) error {
	if err := db.EnsureGuild(ctx, c.GuildID); err != nil {
		return errutil.With(err)
	}

	data := c.Map()
	data["created"] = time.Now().UTC()

	q := db.builder.
		Insert(string(c.Table())).
		SetMap(data).
		Suffix("ON CONFLICT (guild_id, member_id) DO UPDATE SET nickname = EXCLUDED.nickname, base = EXCLUDED.base, updated = NOW()")

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) DeleteCleanedNickname(ctx context.Context, guildID, memberID string) error {
	if _, err := db.Delete(ctx, models.TableCleanedNicknames, sq.Eq{"guild_id": guildID, "member_id": memberID}); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) VoiceLinks(ctx context.Context, guildID string) ([]models.VoiceLink, error) {
	q := db.builder.
		Select("guild_id", "text_channel_id", "voice_channel_id", "created").
		From(string(models.TableVoiceLinks)).
		Where(sq.Eq{"guild_id": guildID}).
		OrderBy("voice_channel_id", "text_channel_id")

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, errutil.With(err)
	}
	defer rows.Close()

	var links []models.VoiceLink
	for rows.Next() {
		var l models.VoiceLink
		if err := rows.Scan(&l.GuildID, &l.TextChannelID, &l.VoiceChannelID, &l.Created); err != nil {
			return nil, errutil.With(err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.With(err)
	}

	return links, nil
}

// TextChannelsLinkedTo lists the text channels linked to a voice channel. An
// empty voice channel ID has no links.
func (db *Database) TextChannelsLinkedTo(ctx context.Context, guildID, voiceChannelID string) ([]string, error) {
	if voiceChannelID == "" {
		return nil, nil
	}

	q := db.builder.
		Select("text_channel_id").
		From(string(models.TableVoiceLinks)).
		Where(sq.Eq{"guild_id": guildID, "voice_channel_id": voiceChannelID})

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, errutil.With(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errutil.With(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.With(err)
	}

	return ids, nil
}

func (db *Database) AddVoiceLink(ctx context.Context, link models.VoiceLink) error {
	if err := db.EnsureGuild(ctx, link.GuildID); err != nil {
		return errutil.With(err)
	}

	data := link.Map()
	data["created"] = time.Now().UTC()

	q := db.builder.
		Insert(string(link.Table())).
		SetMap(data).
		Suffix("ON CONFLICT DO NOTHING")

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

// DeleteVoiceLinks removes every link that involves the channel, on either side.
func (db *Database) DeleteVoiceLinks(ctx context.Context, guildID, channelID string) (int64, error) {
	n, err := db.Delete(ctx, models.TableVoiceLinks, sq.And{
		sq.Eq{"guild_id": guildID},
		sq.Or{
			sq.Eq{"text_channel_id": channelID},
			sq.Eq{"voice_channel_id": channelID},
		},
	})
	if err != nil {
		return 0, errutil.With(err)
	}

	return n, nil
}
