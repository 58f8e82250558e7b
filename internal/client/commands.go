package client

import (
	"errors"
	"strings"
)

// CommandKind enumerates the fixed, closed grammar of client-side commands.
// Parsing is done by exact structural match against each form below, never
// by a strings.HasPrefix chain: an input that merely starts with a keyword
// but doesn't match its full shape is a parse error, not a silent partial
// match.
type CommandKind int

const (
	CmdListEquipment CommandKind = iota
	CmdRequestInformation
	CmdCloseConnection
	CmdQuit
)

// Command is one parsed line of input. DestID is only meaningful for
// CmdRequestInformation.
type Command struct {
	Kind   CommandKind
	DestID string
}

// ErrUnknownCommand is returned by ParseCommand for any input that doesn't
// match one of the four known forms exactly.
var ErrUnknownCommand = errors.New("client: unknown command")

// ParseCommand matches line against the four-command grammar:
//
//	list equipment
//	request information from <id>
//	close connection
//	quit
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)

	switch {
	case len(fields) == 2 && fields[0] == "list" && fields[1] == "equipment":
		return Command{Kind: CmdListEquipment}, nil

	case len(fields) == 4 && fields[0] == "request" && fields[1] == "information" && fields[2] == "from":
		return Command{Kind: CmdRequestInformation, DestID: fields[3]}, nil

	case len(fields) == 2 && fields[0] == "close" && fields[1] == "connection":
		return Command{Kind: CmdCloseConnection}, nil

	case len(fields) == 1 && fields[0] == "quit":
		return Command{Kind: CmdQuit}, nil

	default:
		return Command{}, ErrUnknownCommand
	}
}
