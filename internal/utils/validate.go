package utils

import (
	"fmt"
	"unicode/utf8"

	dg "github.com/bwmarrin/discordgo"
)

const (
	maxCommandNameLength        = 32
	maxCommandDescriptionLength = 100
	maxOptionsPerCommand        = 25
	maxChoicesPerOption         = 25
	maxOptionNameLength         = 32
	maxOptionDescLength         = 100
	maxChoiceNameLength         = 100
	maxChoiceValueLength        = 100
)

type ValidationResult struct {
	Command     *dg.ApplicationCommand
	WasModified bool
	Errors      []string
}

// ValidateCommand trims a command to Discord's registration limits in place,
// descending into subcommands and groups.
func ValidateCommand(cmd *dg.ApplicationCommand) ValidationResult {
	v := validator{result: ValidationResult{Command: cmd}}

	cmd.Name = v.trim(cmd.Name, maxCommandNameLength, "command name")
	cmd.Description = v.trim(cmd.Description, maxCommandDescriptionLength, "command description")
	cmd.Options = v.options(cmd.Name, cmd.Options)

	return v.result
}

type validator struct {
	result ValidationResult
}

func (v *validator) options(path string, opts []*dg.ApplicationCommandOption) []*dg.ApplicationCommandOption {
	if len(opts) > maxOptionsPerCommand {
		opts = opts[:maxOptionsPerCommand]
		v.fix("%s: excess options were removed", path)
	}

	for _, opt := range opts {
		opt.Name = v.trim(opt.Name, maxOptionNameLength, path+": option name")
		opt.Description = v.trim(opt.Description, maxOptionDescLength, path+" "+opt.Name+": option description")

		if len(opt.Choices) > maxChoicesPerOption {
			opt.Choices = opt.Choices[:maxChoicesPerOption]
			v.fix("%s %s: excess choices were removed", path, opt.Name)
		}

		for _, choice := range opt.Choices {
			choice.Name = v.trim(choice.Name, maxChoiceNameLength, path+" "+opt.Name+": choice name")
			if s, ok := choice.Value.(string); ok {
				choice.Value = v.trim(s, maxChoiceValueLength, path+" "+opt.Name+": choice value")
			}
		}

		opt.Options = v.options(path+" "+opt.Name, opt.Options)
	}

	return opts
}

func (v *validator) trim(s string, limit int, what string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	v.fix("%s was truncated", what)
	return string([]rune(s)[:limit])
}

func (v *validator) fix(format string, args ...any) {
	v.result.WasModified = true
	v.result.Errors = append(v.result.Errors, fmt.Sprintf(format, args...))
}
