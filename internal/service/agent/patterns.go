package agent

import (
	"regexp"
	"strings"

	callmodel "github.com/quietline/frontdesk/internal/model/call"
)

// patternRule tags a regex with the category it detects. Rules are evaluated
// top to bottom; the first match wins.
type patternRule struct {
	category string
	re       *regexp.Regexp
}

var spamRules = []patternRule{
	{"survey", regexp.MustCompile(`(?i)\b(survey|poll|questionnaire)\b`)},
	{"telemarketing", regexp.MustCompile(`(?i)\b(telemarketing|marketing|promotion)\b`)},
	{"robocall", regexp.MustCompile(`(?i)\b(robocall|automated|recording)\b`)},
	{"warranty", regexp.MustCompile(`(?i)\b(warranty|extended warranty)\b`)},
	{"credit", regexp.MustCompile(`(?i)\b(credit card|debt|loan)\b`)},
	{"insurance", regexp.MustCompile(`(?i)\b(insurance|medicare|health plan)\b`)},
	{"energy", regexp.MustCompile(`(?i)\b(solar|energy|utility)\b`)},
	{"timeshare", regexp.MustCompile(`(?i)\b(vacation|timeshare|cruise)\b`)},
	{"ivr-menu", regexp.MustCompile(`(?i)press \d+ to`)},
	{"sales-disclaimer", regexp.MustCompile(`(?i)this is not a sales call`)},
	{"pressure", regexp.MustCompile(`(?i)do not hang up`)},
	{"final-notice", regexp.MustCompile(`(?i)final notice`)},
}

var transferRules = []patternRule{
	{"human-request", regexp.MustCompile(`(?i)\b(speak to|talk to|connect me|transfer me)\b.*\b(human|person|representative|agent|manager|someone)\b`)},
	{"pricing", regexp.MustCompile(`(?i)\b(pricing|price|cost|quote|estimate)\b`)},
	{"tech-support", regexp.MustCompile(`(?i)\b(technical support|tech support|help with)\b`)},
	{"complaint", regexp.MustCompile(`(?i)\b(complaint|problem|issue|trouble)\b`)},
	{"billing", regexp.MustCompile(`(?i)\b(billing|payment|invoice|account)\b`)},
	{"cancellation", regexp.MustCompile(`(?i)\b(cancel|refund|return)\b`)},
}

// matchSpam returns the category of the first spam rule the utterance hits.
func matchSpam(utterance string) (string, bool) {
	for _, rule := range spamRules {
		if rule.re.MatchString(utterance) {
			return rule.category, true
		}
	}
	return "", false
}

// matchTransfer returns the category of the first transfer-intent rule the
// utterance hits.
func matchTransfer(utterance string) (string, bool) {
	for _, rule := range transferRules {
		if rule.re.MatchString(utterance) {
			return rule.category, true
		}
	}
	return "", false
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)my name is ([A-Za-z\s]+)`),
	regexp.MustCompile(`(?i)this is ([A-Za-z\s]+)`),
	regexp.MustCompile(`(?i)\bI'm ([A-Za-z\s]+)`),
	regexp.MustCompile(`(?i)\bI am ([A-Za-z\s]+)`),
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)from ([A-Za-z\s&.,]+(?:Inc|LLC|Corp|Company|Co|Ltd))`),
	regexp.MustCompile(`(?i)with ([A-Za-z\s&.,]+(?:Inc|LLC|Corp|Company|Co|Ltd))`),
	regexp.MustCompile(`(?i)at ([A-Za-z\s&.,]+(?:Inc|LLC|Corp|Company|Co|Ltd))`),
	regexp.MustCompile(`(?i)work for ([A-Za-z\s&.,]+)`),
	regexp.MustCompile(`(?i)represent ([A-Za-z\s&.,]+)`),
}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{3}[-.\s]?\d{3}[-.\s]?\d{4})`),
	regexp.MustCompile(`(\(\d{3}\)\s?\d{3}[-.\s]?\d{4})`),
}

var reasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)calling about ([^.!?]+)`),
	regexp.MustCompile(`(?i)interested in ([^.!?]+)`),
	regexp.MustCompile(`(?i)need help with ([^.!?]+)`),
	regexp.MustCompile(`(?i)looking for ([^.!?]+)`),
	regexp.MustCompile(`(?i)want to ([^.!?]+)`),
}

// nameStopwords cut a greedy name capture where the caller moves on to their
// company or reason ("this is John Smith from Acme Corp" must not swallow
// "from Acme Corp" into the name).
var nameStopwords = map[string]struct{}{
	"from": {}, "with": {}, "at": {}, "and": {}, "calling": {},
}

const maxNameWords = 3

func cleanName(raw string) string {
	words := strings.Fields(raw)
	cleaned := make([]string, 0, maxNameWords)
	for _, word := range words {
		if _, stop := nameStopwords[strings.ToLower(word)]; stop {
			break
		}
		cleaned = append(cleaned, word)
		if len(cleaned) == maxNameWords {
			break
		}
	}
	return strings.Join(cleaned, " ")
}

// extract pulls caller details out of the utterance. Every field is
// first-match-sticks: once set it is never overwritten by a later utterance.
func extract(conv *callmodel.Conversation, utterance string) {
	if conv.CallerName == "" {
		for _, re := range namePatterns {
			if m := re.FindStringSubmatch(utterance); m != nil {
				if name := cleanName(m[1]); name != "" {
					conv.CallerName = name
					break
				}
			}
		}
	}

	if conv.CallerCompany == "" {
		for _, re := range companyPatterns {
			if m := re.FindStringSubmatch(utterance); m != nil {
				conv.CallerCompany = strings.Trim(strings.TrimSpace(m[1]), ",.")
				break
			}
		}
	}

	if conv.CallerPhone == "" {
		for _, re := range phonePatterns {
			if m := re.FindStringSubmatch(utterance); m != nil {
				conv.CallerPhone = strings.TrimSpace(m[1])
				break
			}
		}
	}

	if conv.ReasonForCall == "" {
		for _, re := range reasonPatterns {
			if m := re.FindStringSubmatch(utterance); m != nil {
				conv.ReasonForCall = strings.TrimSpace(m[1])
				break
			}
		}
	}
}

var businessKeywords = []string{
	"business", "company", "service", "solution", "enterprise",
	"commercial", "corporate", "organization", "firm",
}

func isBusinessInquiry(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, keyword := range businessKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
