package agent

import "strings"

// policyMarkers are reserved strings an assistant emits when its own
// reply trips a content-policy rule. A marked round is still shown to the
// user, but the chat is latched disabled and not persisted.
var policyMarkers = []string{
	"#irrelevant",
	"#personal-info",
	"#manipulation",
}

// ScanPolicyMarkers returns the first marker found in the assistant text,
// or the empty string.
func ScanPolicyMarkers(text string) string {
	for _, marker := range policyMarkers {
		if strings.Contains(text, marker) {
			return marker
		}
	}
	return ""
}
