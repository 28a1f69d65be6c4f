package verify

import "regexp"

// guardrailDetector pairs a forbidden-marker pattern with the message
// reported when it fires.
type guardrailDetector struct {
	name    string
	pattern *regexp.Regexp
	message string
}

// guardrailDetectors is the table of forbidden diff markers scanned during
// Tier 1. Any hit forces a BLOCKED verdict regardless of lint output.
var guardrailDetectors = []guardrailDetector{
	{
		name:    "test_skip",
		pattern: regexp.MustCompile(`(?i)\b(skip|xfail|xit|t\.Skip\(|pytest\.mark\.skip)\b`),
		message: "introduced a test-skip marker",
	},
	{
		name:    "verification_bypass",
		pattern: regexp.MustCompile(`(?i)(no-?verify|verify[-_]?bypass|skip[-_]?ci|bypass[-_]?checks?)`),
		message: "introduced a verification-bypass marker",
	},
	{
		name:    "committed_secret",
		pattern: regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|password)\s*[:=]\s*['"][A-Za-z0-9+/=_-]{8,}['"]`),
		message: "possible credential committed in diff",
	},
}

// ScanGuardrails checks diffText for any forbidden marker and returns the
// message of the first hit, or "" if none fired.
func ScanGuardrails(diffText string) (hit bool, message string) {
	for _, d := range guardrailDetectors {
		if d.pattern.MatchString(diffText) {
			return true, d.message
		}
	}
	return false, ""
}
