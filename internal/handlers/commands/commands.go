package commands

import (
	dg "github.com/bwmarrin/discordgo"
)

var (
	manageGuild    = int64(dg.PermissionManageGuild)
	manageRoles    = int64(dg.PermissionManageRoles)
	manageMessages = int64(dg.PermissionManageMessages)
	manageEmojis   = int64(dg.PermissionManageEmojis)
	noDM           = false
)

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
