package utils

import (
	"bytes"
	"os/exec"
	"runtime/debug"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/rs/xid"
)

// NewID returns a sortable unique ID for stored records.
func NewID() string {
	return xid.New().String()
}

// OptionsByName keys a level of command options by their names.
func OptionsByName(opts []*dg.ApplicationCommandInteractionDataOption) map[string]*dg.ApplicationCommandInteractionDataOption {
	om := make(map[string]*dg.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		om[opt.Name] = opt
	}
	return om
}

// Version is the VCS revision the binary was built from. Builds without
// stamped VCS info fall back to asking git.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}

	cmd := exec.Command("git", "rev-parse", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}

	return strings.TrimSpace(out.String())
}
