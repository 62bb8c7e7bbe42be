package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   string
		idle     bool
		question bool
		working  bool
		err      bool
	}{
		{status: "Ready", idle: true},
		{status: "done", idle: true},
		{status: "Done", idle: true},
		{status: "DONE", idle: true},
		{status: "", idle: true},
		{status: "QUESTION", question: true},
		{status: "Building...", working: true},
		{status: "Error: build failed", err: true},
		{status: "ready", working: true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			s := StatusSnapshot{Status: tt.status}
			require.Equal(t, tt.idle, s.IsIdle())
			require.Equal(t, tt.question, s.IsQuestion())
			require.Equal(t, tt.working, s.IsWorking())
			require.Equal(t, tt.err, s.IsError())
			require.False(t, s.IsIdle() && s.IsQuestion())
		})
	}
}

func TestQuestionDecomposition(t *testing.T) {
	t.Parallel()

	s := StatusSnapshot{Status: StatusQuestion, Summary: "?Pick one\nOPT:Yes\nOPT:No"}
	require.Equal(t, "Pick one", s.QuestionText())
	require.Equal(t, []string{"Yes", "No"}, s.QuestionOptions())

	single := StatusSnapshot{Status: StatusQuestion, Summary: "?Continue"}
	require.Equal(t, "Continue", single.QuestionText())
	require.Empty(t, single.QuestionOptions())
}

func TestQuestionWithoutMarkerIsWholeSummary(t *testing.T) {
	t.Parallel()

	s := StatusSnapshot{Status: StatusQuestion, Summary: "Proceed?\nOPT:Yes"}
	require.Equal(t, "Proceed?\nOPT:Yes", s.QuestionText())
	require.Empty(t, s.QuestionOptions())

	// Not a question at all.
	s = StatusSnapshot{Status: "Working", Summary: "?Pick\nOPT:A"}
	require.Equal(t, "?Pick\nOPT:A", s.QuestionText())
	require.Empty(t, s.QuestionOptions())
}

func TestHistoryFromLinesMapsSeparator(t *testing.T) {
	t.Parallel()

	got := HistoryFromLines([]string{"one", HistorySeparator, "two"})
	require.Equal(t, []HistoryLine{
		{Text: "one"},
		{Separator: true},
		{Text: "two"},
	}, got)
	require.Nil(t, HistoryFromLines(nil))
}

func TestDefaultSnapshotIsReady(t *testing.T) {
	t.Parallel()

	s := DefaultSnapshot()
	require.True(t, s.IsReady())
	require.True(t, s.IsIdle())
	require.Equal(t, "connected", Connected.String())
}
