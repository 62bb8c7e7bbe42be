// Package version defines delight-watch version information and build
// metadata.
//
// CommitHash should be set using -ldflags during compilation.
package version

import (
	"fmt"
	"strings"
)

// Name is the program name reported to the bridge and in `version` output.
const Name = "delight-watch"

// CommitHash stores the current git commit hash of this build.
var CommitHash string

// semanticAlphabet is the set of characters allowed in SemVer pre-release
// identifiers.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0

	// appPreRelease MUST only contain characters from semanticAlphabet.
	appPreRelease = ""
)

// Version returns the SemVer 2.0.0 version string.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if pre := filterAlphabet(appPreRelease); pre != "" {
		v += "-" + pre
	}
	return v
}

// RichVersion returns the version with the commit hash when known.
func RichVersion() string {
	hash := strings.TrimSpace(CommitHash)
	if hash == "" {
		return Version()
	}
	return fmt.Sprintf("%s commit_hash=%s", Version(), hash)
}

// UserAgent is sent on the websocket handshake.
func UserAgent() string {
	return Name + "/" + Version()
}

func filterAlphabet(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(semanticAlphabet, r) {
			return r
		}
		return -1
	}, s)
}
