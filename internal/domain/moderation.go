package domain

import (
	"regexp"
	"strings"
)

type ModerationAction string

const (
	ModerationAllow  ModerationAction = "allow"
	ModerationReview ModerationAction = "review"
	ModerationBlock  ModerationAction = "block"
)

type ModerationResult struct {
	Action       ModerationAction `json:"action"`
	MatchedTerms []string         `json:"matchedTerms"`
}

// DefaultReviewTerms apply when no review terms are configured remotely.
var DefaultReviewTerms = []string{
	"abuse",
	"harassment",
	"hate",
	"threat",
	"violence",
	"porn",
	"nsfw",
	"spam",
	"scam",
}

// EvaluateText checks text against blocked terms first and review terms
// second. Terms match whole words, case-insensitively.
func EvaluateText(text string, blocked, review []string) ModerationResult {
	if matches := matchTerms(text, blocked); len(matches) > 0 {
		return ModerationResult{Action: ModerationBlock, MatchedTerms: matches}
	}
	if matches := matchTerms(text, review); len(matches) > 0 {
		return ModerationResult{Action: ModerationReview, MatchedTerms: matches}
	}
	return ModerationResult{Action: ModerationAllow, MatchedTerms: []string{}}
}

func matchTerms(text string, terms []string) []string {
	if strings.TrimSpace(text) == "" || len(terms) == 0 {
		return nil
	}
	normalized := strings.ToLower(text)
	var out []string
	for _, term := range terms {
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(normalized) {
			out = append(out, term)
		}
	}
	return out
}
