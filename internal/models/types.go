package models

type Table string

const (
	TableGuildConfig      Table = "guild_config"
	TableCleanedNicknames Table = "cleaned_nicknames"
	TableVoiceLinks       Table = "voice_links"
	TableInteractions     Table = "interactions"
)

// Field names a guild_config column that can be read or written on its own.
type Field string

const (
	FieldPrefix         Field = "prefix"
	FieldEmbedMessages  Field = "embed_messages"
	FieldCleanDehoist   Field = "clean_dehoist"
	FieldCleanNormalize Field = "clean_normalize"
	FieldAutoRole       Field = "autorole_id"
	FieldSelfRoles      Field = "selfroles"
	FieldPronounRoles   Field = "selfrole_pronoun"
	FieldCommandSetHash Field = "command_set_hash"

	// FieldCleanedNicknames addresses the cleaned_nicknames rows of a guild as
	// a whole when caching them.
	FieldCleanedNicknames Field = "cleaned_nicknames"
)

type Mappable interface {
	Table() Table
	Map() map[string]any
}
