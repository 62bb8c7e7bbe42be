// Package derive turns bridge state into presentation classifications.
//
// Everything here is a pure function of its arguments and is recomputed on
// every call. Hosts use these values for display, haptics and notifications;
// none of them is stored in the bridge state.
package derive

import (
	"strings"

	"github.com/bhandras/delight/watch/internal/bridge"
	"github.com/bhandras/delight/watch/pkg/types"
)

// Screen is the top-level view a host should show.
type Screen string

const (
	// ScreenMenu lists sessions; shown while no session is active.
	ScreenMenu Screen = "menu"
	// ScreenSession shows the live status of the active session.
	ScreenSession Screen = "session"
	// ScreenQuestion asks the user to answer a pending question.
	ScreenQuestion Screen = "question"
)

// Activity classifies what the assistant is doing.
type Activity string

const (
	ActivityIdle     Activity = "idle"
	ActivityWorking  Activity = "working"
	ActivityQuestion Activity = "question"
	ActivityError    Activity = "error"
)

// Ring is the state indicator drawn around the status display.
type Ring string

const (
	RingReady    Ring = "ready"
	RingThinking Ring = "thinking"
	RingQuestion Ring = "question"
	RingError    Ring = "error"
)

// Cue is a one-shot signal raised by a state change, such as a haptic pulse.
type Cue string

const (
	// CueQuestionArrived fires when the question screen is entered.
	CueQuestionArrived Cue = "question_arrived"
	// CueFinished fires when a working assistant reports Ready.
	CueFinished Cue = "finished"
)

const (
	commandWorking = "▸ "
	commandIdle    = "◇ "
	transcriptRule = "─"
)

// ScreenOf picks the screen for the active session and snapshot.
func ScreenOf(activeSession string, snap types.StatusSnapshot) Screen {
	switch {
	case activeSession == "":
		return ScreenMenu
	case snap.IsQuestion():
		return ScreenQuestion
	default:
		return ScreenSession
	}
}

// ActivityOf classifies a snapshot. Question wins over error, and error wins
// over working.
func ActivityOf(snap types.StatusSnapshot) Activity {
	switch {
	case snap.IsQuestion():
		return ActivityQuestion
	case snap.IsError():
		return ActivityError
	case snap.IsIdle():
		return ActivityIdle
	default:
		return ActivityWorking
	}
}

// RingOf maps a snapshot to the ring indicator.
func RingOf(snap types.StatusSnapshot) Ring {
	switch ActivityOf(snap) {
	case ActivityQuestion:
		return RingQuestion
	case ActivityError:
		return RingError
	case ActivityWorking:
		return RingThinking
	default:
		return RingReady
	}
}

// HasActionablePrompt reports whether p offers options to pick from, as
// opposed to a free-form ask.
func HasActionablePrompt(p *types.PromptData) bool {
	return p != nil && !p.IsAskUser
}

// PillText is the short status label. A busy assistant shows its status
// verb without trailing ellipsis.
func PillText(snap types.StatusSnapshot) string {
	if snap.IsIdle() {
		return "Ready"
	}
	if status := trimEllipsis(snap.Status); status != "" {
		return status
	}
	return "Working"
}

// CommandLine is the one-line activity bar: the active task while busy,
// otherwise the last tool and diff.
func CommandLine(snap types.StatusSnapshot) string {
	task := cleanDots(snap.ActiveTask)
	tool := cleanDots(snap.LastTool)
	diff := cleanDots(snap.Diff)

	switch {
	case !snap.IsIdle() && task != "":
		return commandWorking + task
	case diff != "" && tool != "":
		return commandIdle + tool + ": " + diff
	case diff != "":
		return commandIdle + diff
	case tool != "":
		return commandIdle + tool
	default:
		return ""
	}
}

// PromptBar is the hint shown above the controls: the suggestion if the
// assistant made one, else the first option of an actionable prompt.
func PromptBar(snap types.StatusSnapshot, prompt *types.PromptData) string {
	if snap.Suggestion != "" {
		return snap.Suggestion
	}
	if HasActionablePrompt(prompt) && len(prompt.Options) > 0 {
		return prompt.Options[0].Label
	}
	return ""
}

// TranscriptLines renders bridge-seeded history with separators drawn as a
// rule.
func TranscriptLines(history []types.HistoryLine) []string {
	out := make([]string, 0, len(history))
	for _, line := range history {
		if line.Separator {
			out = append(out, transcriptRule)
			continue
		}
		out = append(out, line.Text)
	}
	return out
}

// SummaryLines splits a summary into its non-blank lines.
func SummaryLines(summary string) []string {
	var out []string
	for _, line := range strings.Split(summary, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// Cues reports the one-shot signals raised by moving from prev to next.
func Cues(prev, next bridge.State) []Cue {
	var cues []Cue
	if ScreenOf(prev.ActiveSession, prev.Snapshot) != ScreenQuestion &&
		ScreenOf(next.ActiveSession, next.Snapshot) == ScreenQuestion {
		cues = append(cues, CueQuestionArrived)
	}
	wasBusy := !prev.Snapshot.IsIdle() && !prev.Snapshot.IsQuestion()
	if wasBusy && next.Snapshot.IsReady() {
		cues = append(cues, CueFinished)
	}
	return cues
}

// View bundles every projection of one state.
type View struct {
	Screen      Screen
	Activity    Activity
	Ring        Ring
	Pill        string
	CommandLine string
	PromptBar   string
	HasPrompt   bool
	Question    string
	Options     []string
}

// Project computes the View of st.
func Project(st bridge.State) View {
	snap := st.Snapshot
	v := View{
		Screen:      ScreenOf(st.ActiveSession, snap),
		Activity:    ActivityOf(snap),
		Ring:        RingOf(snap),
		Pill:        PillText(snap),
		CommandLine: CommandLine(snap),
		PromptBar:   PromptBar(snap, st.Prompt),
		HasPrompt:   HasActionablePrompt(st.Prompt),
	}
	if snap.IsQuestion() {
		v.Question = snap.QuestionText()
		v.Options = snap.QuestionOptions()
	}
	return v
}

func trimEllipsis(s string) string {
	s = strings.TrimSuffix(s, "...")
	s = strings.TrimSuffix(s, "…")
	return strings.TrimSpace(s)
}

func cleanDots(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "...")
	s = strings.TrimSuffix(s, "...")
	s = strings.TrimPrefix(s, "…")
	s = strings.TrimSuffix(s, "…")
	return strings.TrimSpace(s)
}
