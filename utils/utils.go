package utils

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`<@[^>|]+(?:\|[^>]+)?>`)

func AssertInvariant(condition bool, message string) {
	if !condition {
		panic("invariant violated - " + message)
	}
}

// StripMentions removes Slack user mentions such as <@U123> or <@U123|name> from text
func StripMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}
