package retry

import "strings"

// terminalMarkers are substrings whose presence in an error's text means a
// reconnect attempt would not help: the peer rejected the connection for a
// reason retrying cannot fix.
var terminalMarkers = []string{
	"offline",
	"exist",
	"handshake",
	"failed",
	"resolve",
	"mismatch",
	"manually",
	"not-allowed",
	"reset",
}

// transientMarkers are substrings of a relay-mode socket error that mean the
// underlying TCP connection was merely reset by the OS, not refused by the
// peer.
var transientMarkers = []string{
	"10054", // WSAECONNRESET
	"104",   // ECONNRESET
}

// CheckIfRetry decides whether a reconnect loop should retry after seeing
// errText. The match is deliberately a literal substring scan against the
// peer's own error text rather than a typed sentinel comparison: the peer
// controls the exact wording and this client cannot enumerate every variant
// up front, so the substring set is kept exactly as observed rather than
// "cleaned up" into something more structured.
func CheckIfRetry(errText string, relayMode bool) bool {
	lower := strings.ToLower(errText)

	if relayMode {
		for _, m := range transientMarkers {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}

	for _, m := range terminalMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}
