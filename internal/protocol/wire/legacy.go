package wire

import (
	"strings"

	"github.com/bhandras/delight/watch/pkg/types"
)

// LegacyPrefix marks the pipe-delimited status format older bridges put in
// the content field of output frames.
const LegacyPrefix = "CLEAN:"

// legacyFieldCount is the number of pipe-delimited fields. The last field
// keeps any further pipes verbatim.
const legacyFieldCount = 7

// ParseLegacyStatus parses "CLEAN:userCmd|summary|status|lastTool|suggestion|activeTask|diff".
// Missing trailing fields default to empty, except status which defaults to
// "Ready". It returns false when raw does not carry the prefix.
func ParseLegacyStatus(raw string) (types.StatusSnapshot, bool) {
	body, ok := strings.CutPrefix(raw, LegacyPrefix)
	if !ok {
		return types.StatusSnapshot{}, false
	}
	parts := strings.SplitN(body, "|", legacyFieldCount)
	field := func(i int, def string) string {
		if i < len(parts) {
			return parts[i]
		}
		return def
	}
	return types.StatusSnapshot{
		UserCommand: field(0, ""),
		Summary:     field(1, ""),
		Status:      field(2, types.StatusReady),
		LastTool:    field(3, ""),
		Suggestion:  field(4, ""),
		ActiveTask:  field(5, ""),
		Diff:        field(6, ""),
	}, true
}
