package types

import "strings"

const (
	// StatusReady is the status the bridge reports when the assistant is
	// waiting for the next instruction.
	StatusReady = "Ready"
	// StatusDone is the status reported after a turn completes. It is matched
	// case-insensitively.
	StatusDone = "Done"
	// StatusQuestion marks a snapshot whose summary carries a question.
	StatusQuestion = "QUESTION"

	// HistorySeparator is the literal line value the bridge uses to mark a turn
	// boundary in seeded history.
	HistorySeparator = "---SEP---"

	// questionPrefix starts a structured question summary.
	questionPrefix = "?"
	// optionPrefix starts an option line inside a structured question summary.
	optionPrefix = "OPT:"
)

// ConnState is the client-side connection status.
type ConnState int

const (
	// Disconnected means no connection handle is live.
	Disconnected ConnState = iota
	// Connecting means a dial is in flight.
	Connecting
	// Connected means the connection is open.
	Connected
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// StatusSnapshot is the assistant's current reported state for the active
// session. It is replaced wholesale on every update.
type StatusSnapshot struct {
	// UserCommand is the last instruction the user sent.
	UserCommand string `json:"userCmd"`
	// Summary is the assistant's running summary. It may span several lines
	// and may encode a question (see QuestionText).
	Summary string `json:"summary"`
	// Status is the status token ("Ready", "Done", "QUESTION", a verb, ...).
	Status string `json:"status"`
	// LastTool is the most recent tool the assistant used.
	LastTool string `json:"lastTool"`
	// Suggestion is an optional next-step suggestion.
	Suggestion string `json:"suggestion"`
	// ActiveTask is the task currently being worked on.
	ActiveTask string `json:"activeTask"`
	// Diff is a short description of the latest change.
	Diff string `json:"diff"`
}

// DefaultSnapshot returns the snapshot used before any output has been seen.
func DefaultSnapshot() StatusSnapshot {
	return StatusSnapshot{Status: StatusReady}
}

// IsQuestion reports whether the snapshot carries a pending question.
func (s StatusSnapshot) IsQuestion() bool { return s.Status == StatusQuestion }

// IsReady reports whether the assistant reported "Ready".
func (s StatusSnapshot) IsReady() bool { return s.Status == StatusReady }

// IsDone reports whether the assistant reported "Done" in any letter case.
func (s StatusSnapshot) IsDone() bool { return strings.EqualFold(s.Status, StatusDone) }

// IsIdle reports whether the assistant is not actively working.
func (s StatusSnapshot) IsIdle() bool {
	return s.IsReady() || s.IsDone() || s.Status == ""
}

// IsError reports whether the status mentions an error.
func (s StatusSnapshot) IsError() bool {
	return strings.Contains(strings.ToLower(s.Status), "error")
}

// IsWorking reports whether the assistant is busy on a turn.
func (s StatusSnapshot) IsWorking() bool {
	return !s.IsIdle() && !s.IsQuestion() && !s.IsError()
}

// QuestionText returns the question to show the user.
//
// A structured question summary starts with "?": its first line (without the
// "?") is the question. Any other summary is returned whole.
func (s StatusSnapshot) QuestionText() string {
	if !s.IsQuestion() || !strings.HasPrefix(s.Summary, questionPrefix) {
		return s.Summary
	}
	body := strings.TrimPrefix(s.Summary, questionPrefix)
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		return body[:nl]
	}
	return body
}

// QuestionOptions returns the ordered option labels of a structured question.
func (s StatusSnapshot) QuestionOptions() []string {
	if !s.IsQuestion() || !strings.HasPrefix(s.Summary, questionPrefix) {
		return nil
	}
	var options []string
	for _, line := range strings.Split(s.Summary, "\n") {
		if label, ok := strings.CutPrefix(line, optionPrefix); ok {
			options = append(options, label)
		}
	}
	return options
}

// PromptOption is a single selectable answer of a prompt.
type PromptOption struct {
	// Num is the value sent back with a "key" command.
	Num int `json:"num"`
	// Label is the human readable option text.
	Label string `json:"label"`
}

// PromptData is a server-issued request for the user to choose an option or
// answer freely.
type PromptData struct {
	Options   []PromptOption `json:"options"`
	IsAskUser bool           `json:"isAskUser"`
	Question  string         `json:"question"`
}

// HistoryLine is one entry of bridge-seeded history.
type HistoryLine struct {
	// Text is the line content. It is empty for separators.
	Text string `json:"text,omitempty"`
	// Separator marks a turn boundary rather than content.
	Separator bool `json:"separator,omitempty"`
}

// HistoryFromLines maps raw bridge lines to history entries, turning the
// separator sentinel into structural markers.
func HistoryFromLines(lines []string) []HistoryLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]HistoryLine, 0, len(lines))
	for _, line := range lines {
		if line == HistorySeparator {
			out = append(out, HistoryLine{Separator: true})
			continue
		}
		out = append(out, HistoryLine{Text: line})
	}
	return out
}
