package websocket

import (
	"fmt"
	"strings"
)

const (
	// DefaultPort is the plaintext port bridges listen on in a local network.
	DefaultPort = 8080
	// DefaultTailnetSuffix is appended to short host names.
	DefaultTailnetSuffix = ".taildd7ed4.ts.net"

	tailnetDomain = ".ts.net"
)

// ResolveURL turns a configured host into a bridge URL.
//
// Names already qualified with the tailnet domain (or with suffix) are used
// verbatim over wss. Hosts with a digit and a dot are treated as raw IPs and
// reached over plaintext ws on port. Anything else is a short tailnet name
// and gets suffix appended.
func ResolveURL(host string, port int, suffix string) string {
	host = strings.TrimSpace(host)
	if suffix == "" {
		suffix = DefaultTailnetSuffix
	}
	if port <= 0 {
		port = DefaultPort
	}

	switch {
	case strings.HasSuffix(host, tailnetDomain), strings.HasSuffix(host, suffix):
		return "wss://" + host
	case looksLikeIP(host):
		return fmt.Sprintf("ws://%s:%d", host, port)
	default:
		return "wss://" + host + suffix
	}
}

func looksLikeIP(host string) bool {
	return strings.ContainsAny(host, "0123456789") && strings.Contains(host, ".")
}
