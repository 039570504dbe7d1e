package gateway

import (
	"regexp"
)

// Human-action types attached to classified execution errors. Callers
// route these to a human-review flow instead of retrying blindly.
const (
	ActionReviewMissingRelation = "review_missing_relation"
	ActionReviewMissingColumn   = "review_missing_column"
	ActionReviewPermissions     = "review_permissions"
	ActionReviewAmbiguousColumn = "review_ambiguous_column"
	ActionReviewTypeMismatch    = "review_type_mismatch"
)

// humanActionPatterns maps native error messages onto review actions.
// The patterns cover the phrasing of all three engines; callers must
// never depend on backend-specific error text, so the classification is
// the only cross-engine contract.
var humanActionPatterns = []struct {
	re     *regexp.Regexp
	action string
}{
	{regexp.MustCompile(`(?i)(no such table|relation .+ does not exist|table .+ not found|missing relation)`), ActionReviewMissingRelation},
	{regexp.MustCompile(`(?i)(no such column|column .+ does not exist|unknown column|missing column)`), ActionReviewMissingColumn},
	{regexp.MustCompile(`(?i)(permission denied|access denied|not authorized|insufficient privilege)`), ActionReviewPermissions},
	{regexp.MustCompile(`(?i)(ambiguous column|column reference .+ is ambiguous)`), ActionReviewAmbiguousColumn},
	{regexp.MustCompile(`(?i)(could not convert|invalid input syntax|type mismatch|conversion failed|cannot be cast)`), ActionReviewTypeMismatch},
}

// classifyForHumanAction runs an execution error message through the
// fixed pattern set and reports whether human review is required, and
// which kind.
func classifyForHumanAction(message string) (bool, string) {
	for _, p := range humanActionPatterns {
		if p.re.MatchString(message) {
			return true, p.action
		}
	}
	return false, ""
}
