package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bhandras/delight/watch/pkg/types"
)

var (
	// errNotObject is returned for frames that are not a JSON object.
	errNotObject = errors.New("frame is not a JSON object")
	// errMissingField is returned when a required array is absent.
	errMissingField = errors.New("missing required field")
)

// DecodeError reports an inbound frame that could not be decoded. The frame
// should be dropped; it never affects the connection.
type DecodeError struct {
	// Type is the frame discriminator, when it could be read.
	Type string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %s frame: %v", e.Type, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one inbound text frame.
//
// Unrecognized discriminators decode to UnknownEvent so callers can ignore
// them. Malformed frames return a *DecodeError and a nil Event.
func Decode(frame []byte) (Event, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(frame, &obj); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if obj == nil {
		return nil, &DecodeError{Err: errNotObject}
	}

	var typ string
	if raw, ok := obj[typeField]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &typ); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("type: %w", err)}
		}
	}

	var (
		ev  Event
		err error
	)
	switch EventType(typ) {
	case EventMenu:
		ev, err = decodeMenu(obj)
	case EventSessionJoined:
		ev, err = decodeJoined(obj, false)
	case EventSessionCreated:
		ev, err = decodeJoined(obj, true)
	case EventHistory:
		ev, err = decodeHistory(obj)
	case EventOutput:
		ev, err = decodeOutput(obj)
	default:
		return UnknownEvent{Type: typ}, nil
	}
	if err != nil {
		return nil, &DecodeError{Type: typ, Err: err}
	}
	return ev, nil
}

func decodeMenu(obj map[string]json.RawMessage) (Event, error) {
	sessions, err := requiredStrings(obj, "sessions")
	if err != nil {
		return nil, err
	}
	return MenuEvent{Sessions: sessions}, nil
}

func decodeJoined(obj map[string]json.RawMessage, created bool) (Event, error) {
	name, err := optionalString(obj, "name", "")
	if err != nil {
		return nil, err
	}
	return SessionJoinedEvent{Name: name, Created: created}, nil
}

func decodeHistory(obj map[string]json.RawMessage) (Event, error) {
	lines, err := requiredStrings(obj, "lines")
	if err != nil {
		return nil, err
	}
	return HistoryEvent{Lines: lines}, nil
}

// cleanDataFrame mirrors the structured status object. Pointer fields let
// absent keys fall back to defaults.
type cleanDataFrame struct {
	UserCmd    *string `json:"userCmd"`
	Summary    *string `json:"summary"`
	Status     *string `json:"status"`
	LastTool   *string `json:"lastTool"`
	Suggestion *string `json:"suggestion"`
	ActiveTask *string `json:"activeTask"`
	Diff       *string `json:"diff"`
}

func (f cleanDataFrame) snapshot() types.StatusSnapshot {
	return types.StatusSnapshot{
		UserCommand: deref(f.UserCmd, ""),
		Summary:     deref(f.Summary, ""),
		Status:      deref(f.Status, types.StatusReady),
		LastTool:    deref(f.LastTool, ""),
		Suggestion:  deref(f.Suggestion, ""),
		ActiveTask:  deref(f.ActiveTask, ""),
		Diff:        deref(f.Diff, ""),
	}
}

type promptFrame struct {
	Options   []json.RawMessage `json:"options"`
	IsAskUser *bool             `json:"isAskUser"`
	Question  *string           `json:"question"`
}

type promptOptionFrame struct {
	Num   *int    `json:"num"`
	Label *string `json:"label"`
}

func decodeOutput(obj map[string]json.RawMessage) (Event, error) {
	var out OutputEvent

	if raw, ok := obj["cleanData"]; ok && isObject(raw) {
		var cd cleanDataFrame
		if err := json.Unmarshal(raw, &cd); err != nil {
			return nil, fmt.Errorf("cleanData: %w", err)
		}
		snap := cd.snapshot()
		out.CleanData = &snap
	}

	if raw, ok := obj["prompt"]; ok && isObject(raw) {
		prompt, err := decodePrompt(raw)
		if err != nil {
			return nil, err
		}
		out.Prompt = prompt
	}

	content, err := optionalString(obj, "content", "")
	if err != nil {
		return nil, err
	}
	out.Content = content

	return out, nil
}

func decodePrompt(raw json.RawMessage) (*types.PromptData, error) {
	var pf promptFrame
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}

	prompt := &types.PromptData{
		IsAskUser: pf.IsAskUser != nil && *pf.IsAskUser,
		Question:  deref(pf.Question, ""),
	}
	for i, rawOpt := range pf.Options {
		var of promptOptionFrame
		if err := json.Unmarshal(rawOpt, &of); err != nil {
			return nil, fmt.Errorf("prompt option %d: %w", i, err)
		}
		num := i + 1
		if of.Num != nil {
			num = *of.Num
		}
		prompt.Options = append(prompt.Options, types.PromptOption{
			Num:   num,
			Label: deref(of.Label, ""),
		})
	}
	return prompt, nil
}

func requiredStrings(obj map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil, fmt.Errorf("%s: %w", key, errMissingField)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func optionalString(obj map[string]json.RawMessage, key, def string) (string, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return def, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
