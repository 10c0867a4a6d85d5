package retry

import "testing"

func TestCheckIfRetryTerminalMarkersDoNotRetry(t *testing.T) {
	cases := []string{
		"peer is offline",
		"id does not exist",
		"handshake failed",
		"could not resolve address",
		"key mismatch",
		"please connect manually",
		"not-allowed by peer policy",
		"connection reset",
	}
	for _, errText := range cases {
		if CheckIfRetry(errText, false) {
			t.Errorf("CheckIfRetry(%q, false) = true, want false", errText)
		}
	}
}

func TestCheckIfRetryUnmatchedErrorRetries(t *testing.T) {
	if !CheckIfRetry("temporary network hiccup", false) {
		t.Error("expected retry for an error matching no terminal marker")
	}
}

func TestCheckIfRetryRelayTransientOverridesBeforeTerminalCheck(t *testing.T) {
	if !CheckIfRetry("recv failed: 10054 connection reset by peer", true) {
		t.Error("expected retry: relay-mode transient marker should win even though text also contains a terminal-looking word")
	}
}

func TestCheckIfRetryRelayTransientIgnoredOutsideRelayMode(t *testing.T) {
	if CheckIfRetry("recv failed: 10054 connection reset by peer", false) {
		t.Error("expected no retry outside relay mode: text contains the terminal marker \"reset\"")
	}
}
