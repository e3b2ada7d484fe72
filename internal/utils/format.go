package utils

import (
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
)

type TimestampType string

const (
	TimestampShort         TimestampType = "t" // e.g., 16:20
	TimestampLong          TimestampType = "T" // e.g., 16:20:30
	TimestampDate          TimestampType = "d" // e.g., 20/04/2021
	TimestampLongDate      TimestampType = "D" // e.g., 20 April 2021
	TimestampShortDateTime TimestampType = "f" // e.g., 20 April 2021 16:20
	TimestampLongDateTime  TimestampType = "F" // e.g., Tuesday, 20 April 2021 16:20
	TimestampRelative      TimestampType = "R" // e.g., 2 months ago
)

func FormatTimestamp(t time.Time, style TimestampType) string {
	timestamp := t.Unix()
	return fmt.Sprintf("<t:%d:%s>", timestamp, style)
}

func FormatUserMention(id string) string {
	return fmt.Sprintf("<@%s>", id)
}

func FormatRoleMention(id string) string {
	return fmt.Sprintf("<@&%s>", id)
}

func FormatChannelMention(id string) string {
	return fmt.Sprintf("<#%s>", id)
}

// WrapInCode renders s as inline code, widening the fence when s itself
// contains backticks.
func WrapInCode(s string) string {
	if !strings.Contains(s, "`") {
		return "`" + s + "`"
	}

	fence := "``"
	for strings.Contains(s, fence) {
		fence += "`"
	}

	pad := ""
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		pad = " "
	}

	return fence + pad + s + pad + fence
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
	"[", `\[`,
	"]", `\]`,
)

func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Plural picks the singular or plural noun for n.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func FormatInteraction(s *dg.Session, i *dg.InteractionCreate) string {
	if i.Type != dg.InteractionApplicationCommand {
		return ""
	}

	data := i.ApplicationCommandData()
	parts := []string{"/" + data.Name}

	for _, opt := range data.Options {
		parts = append(parts, formatCommandOption(s, i.GuildID, opt))
	}

	return strings.Join(parts, " ")
}

func formatCommandValue(s *dg.Session, guildID string, opt *dg.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case dg.ApplicationCommandOptionString:
		return opt.StringValue()
	case dg.ApplicationCommandOptionInteger:
		return fmt.Sprintf("%d", opt.IntValue())
	case dg.ApplicationCommandOptionBoolean:
		return fmt.Sprintf("%t", opt.BoolValue())
	case dg.ApplicationCommandOptionUser:
		return opt.UserValue(s).Username
	case dg.ApplicationCommandOptionChannel:
		return opt.ChannelValue(s).Name
	case dg.ApplicationCommandOptionRole:
		return opt.RoleValue(s, guildID).Name
	case dg.ApplicationCommandOptionNumber:
		return fmt.Sprintf("%.2f", opt.FloatValue())
	default:
		return fmt.Sprintf("%v", opt.Value)
	}
}

func formatCommandOption(s *dg.Session, guildID string, opt *dg.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case dg.ApplicationCommandOptionSubCommand, dg.ApplicationCommandOptionSubCommandGroup:
		subParts := []string{opt.Name}
		for _, subOpt := range opt.Options {
			subParts = append(subParts, formatCommandOption(s, guildID, subOpt))
		}
		return strings.Join(subParts, " ")
	default:
		return fmt.Sprintf("%s:%v", opt.Name, formatCommandValue(s, guildID, opt))
	}
}
