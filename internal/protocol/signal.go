package protocol

import (
	"maps"
	"net"
	"strings"
)

// Type is the routing tag of a Signal.
type Type string

const (
	TypeControl          Type = "control"
	TypeInteraction      Type = "interaction"
	TypeControllerConfig Type = "controller-config"
)

// Valid reports whether t is one of the three signal kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeControl, TypeInteraction, TypeControllerConfig:
		return true
	}
	return false
}

// Command is a controller command token carried by interaction signals.
type Command string

const (
	CmdNone         Command = ""
	CmdPlay         Command = "play"
	CmdPause        Command = "pause"
	CmdStop         Command = "stop"
	CmdQuit         Command = "quit"
	CmdSendInit     Command = "sendinit"
	CmdGetFeedbacks Command = "getfeedbacks"
	CmdGetVariables Command = "getvariables"
)

var knownCommands = map[Command]struct{}{
	CmdPlay:         {},
	CmdPause:        {},
	CmdStop:         {},
	CmdQuit:         {},
	CmdSendInit:     {},
	CmdGetFeedbacks: {},
	CmdGetVariables: {},
}

// ParseCommand normalizes a wire token. Unknown tokens are returned as-is;
// use Known to tell them apart.
func ParseCommand(token string) Command {
	c := Command(strings.ToLower(strings.TrimSpace(token)))
	if c == "send_init" {
		return CmdSendInit
	}
	return c
}

// Known reports whether c belongs to the fixed command vocabulary.
func (c Command) Known() bool {
	_, ok := knownCommands[c]
	return ok
}

func (c Command) String() string {
	if c == CmdNone {
		return "none"
	}
	return string(c)
}

// Signal is a decoded message. It is treated as immutable once decoded.
type Signal struct {
	ID       string
	Type     Type
	Data     map[string]any
	Commands []Command
	Origin   net.Addr
	// Digest is the BLAKE3 hex digest of the raw packet (empty for
	// locally built signals).
	Digest string
}

// Command returns the first command token, or CmdNone.
func (s *Signal) Command() Command {
	if len(s.Commands) == 0 {
		return CmdNone
	}
	return s.Commands[0]
}

// DataCopy returns a shallow copy of Data (never nil).
func (s *Signal) DataCopy() map[string]any {
	out := make(map[string]any, len(s.Data))
	maps.Copy(out, s.Data)
	return out
}

// NewReply builds an interaction signal carrying data, used for
// getfeedbacks/getvariables answers.
func NewReply(data map[string]any) *Signal {
	return &Signal{Type: TypeInteraction, Data: data}
}
