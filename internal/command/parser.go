// Package command parses the bot's message-text command grammar.
package command

import (
	"regexp"
	"strings"
)

// MinUIDDigits is the minimum length of a uid argument.
const MinUIDDigits = 5

// Kind identifies a recognized command.
type Kind int

const (
	Unrecognized Kind = iota
	Info
	Vists
)

func (k Kind) String() string {
	switch k {
	case Info:
		return "info"
	case Vists:
		return "vists"
	default:
		return "unrecognized"
	}
}

// Command is the parse result. UID is set only for Info and Vists.
type Command struct {
	Kind Kind
	UID  string
}

// Recognized reports whether the text mapped to a known command.
func (c Command) Recognized() bool { return c.Kind != Unrecognized }

var commandRe = regexp.MustCompile(`(?i)^/(info|vists)\s+(\d{5,})`)

// Parse maps raw message text to a command. Matching is case-insensitive and
// tolerates surrounding whitespace. The uid is the leading digit run after the
// prefix, whatever follows it; anything else is Unrecognized.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{}
	}
	m := commandRe.FindStringSubmatch(text)
	if m == nil {
		return Command{}
	}
	switch strings.ToLower(m[1]) {
	case "info":
		return Command{Kind: Info, UID: m[2]}
	case "vists":
		return Command{Kind: Vists, UID: m[2]}
	}
	return Command{}
}

// Usage is the welcome text listing the supported commands.
func Usage() string {
	return "👋 Hi! You can use the following commands:\n" +
		"/info <UID> - Get Free Fire account info\n" +
		"/vists <UID> - Get VISTS API data"
}
