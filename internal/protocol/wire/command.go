package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CommandType is the discriminator of a client -> bridge command.
type CommandType string

const (
	// CmdJoin joins an existing session by name.
	CmdJoin CommandType = "join"
	// CmdCreate asks the bridge to create a new session.
	CmdCreate CommandType = "create"
	// CmdLeave leaves the active session.
	CmdLeave CommandType = "leave"
	// CmdList requests the session menu.
	CmdList CommandType = "list"
	// CmdKey answers a prompt with a numeric option.
	CmdKey CommandType = "key"
	// CmdDictation sends free text.
	CmdDictation CommandType = "dictation"
	// CmdPause pauses the assistant's output stream.
	CmdPause CommandType = "pause"
	// CmdResume resumes the assistant's output stream.
	CmdResume CommandType = "resume"
	// CmdAccept accepts the current suggestion.
	CmdAccept CommandType = "accept"
)

// typeField is the discriminator key shared by commands and events.
const typeField = "type"

// Command is an outbound command frame: a type plus string fields.
type Command struct {
	Type   CommandType
	Fields map[string]string
}

// NewCommand builds a command with optional key/value string fields.
func NewCommand(t CommandType, fields map[string]string) Command {
	return Command{Type: t, Fields: fields}
}

// Join returns a join command for the named session.
func Join(name string) Command {
	return NewCommand(CmdJoin, map[string]string{"name": name})
}

// Key returns a key command carrying the option number as a digit string.
func Key(num int) Command {
	return NewCommand(CmdKey, map[string]string{"content": strconv.Itoa(num)})
}

// Dictation returns a dictation command carrying free text.
func Dictation(text string) Command {
	return NewCommand(CmdDictation, map[string]string{"content": text})
}

// Encode renders the command as a single JSON object.
func Encode(cmd Command) ([]byte, error) {
	if cmd.Type == "" {
		return nil, fmt.Errorf("command type is required")
	}
	obj := make(map[string]string, len(cmd.Fields)+1)
	for k, v := range cmd.Fields {
		if k == typeField {
			return nil, fmt.Errorf("command %s: field %q is reserved", cmd.Type, typeField)
		}
		obj[k] = v
	}
	obj[typeField] = string(cmd.Type)
	return json.Marshal(obj)
}

// String implements fmt.Stringer for logs. Field values are not included
// since dictation content can be long.
func (c Command) String() string {
	return string(c.Type)
}
