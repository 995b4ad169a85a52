package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

// Fixed placeholders used by contact masking. The phone phrase is a
// stable string clients can rely on.
const (
	phonePlaceholder = "[phone number removed - please use the company directory]"
	emailPlaceholder = "[mailto: address masked]"
)

// FallbackTransform is the deterministic local sanitizer applied when
// every generative backend fails. Four independent steps run in order:
// aggressive clauses are replaced with a calm paraphrase, remaining text
// gets lexical normalization, contact details are masked, and
// capitalization/terminal punctuation are normalized. Pure function:
// identical input yields identical output.
func FallbackTransform(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out := rewriteClauses(text)
	out = maskContacts(out)
	out = normalizeText(out)
	return out
}

var aggressionPattern = regexp.MustCompile(`(?i)\b(idiot|idiots|stupid|dumb|moron|morons|fool|fools|useless|pathetic|incompetent|garbage|trash|shut up|screw you|hate you|go to hell|damn you|sucks)\b`)

// detectAggression reports toxic or hostile intent in a clause.
func detectAggression(clause string) bool {
	return aggressionPattern.MatchString(clause)
}

const calmParaphrase = "I would like to keep this discussion constructive"

// rewriteClauses walks sentences and their comma-separated clauses.
// An aggressive clause is replaced wholesale with a calm paraphrase
// rather than word-substituted; calm clauses get lexical normalization.
func rewriteClauses(text string) string {
	sentences := splitKeepDelims(text, ".!?")
	var b strings.Builder
	for _, s := range sentences {
		body, delim := s.body, s.delim
		clauses := strings.Split(body, ",")
		for i, c := range clauses {
			if detectAggression(c) {
				pad := leadingSpace(c)
				clauses[i] = pad + calmParaphrase
			} else {
				clauses[i] = normalizeLexicon(c)
			}
		}
		b.WriteString(strings.Join(clauses, ","))
		b.WriteString(delim)
	}
	return b.String()
}

// Casual-to-formal vocabulary. Matched on word boundaries, case
// insensitive; sentence-start capitalization is restored later.
var lexicon = []struct {
	pattern *regexp.Regexp
	formal  string
}{
	{regexp.MustCompile(`(?i)\bhey\b`), "hello"},
	{regexp.MustCompile(`(?i)\byeah\b`), "yes"},
	{regexp.MustCompile(`(?i)\byep\b`), "yes"},
	{regexp.MustCompile(`(?i)\bnope\b`), "no"},
	{regexp.MustCompile(`(?i)\bgonna\b`), "going to"},
	{regexp.MustCompile(`(?i)\bwanna\b`), "want to"},
	{regexp.MustCompile(`(?i)\bgotta\b`), "have to"},
	{regexp.MustCompile(`(?i)\bkinda\b`), "somewhat"},
	{regexp.MustCompile(`(?i)\basap\b`), "as soon as possible"},
	{regexp.MustCompile(`(?i)\bthx\b`), "thank you"},
	{regexp.MustCompile(`(?i)\bthanks\b`), "thank you"},
	{regexp.MustCompile(`(?i)\bok\b`), "alright"},
	{regexp.MustCompile(`(?i)\bokay\b`), "alright"},
	{regexp.MustCompile(`(?i)\bguys\b`), "team"},
	{regexp.MustCompile(`(?i)\bstuff\b`), "material"},
	{regexp.MustCompile(`(?i)\bget back to\b`), "follow up with"},
}

func normalizeLexicon(clause string) string {
	out := clause
	for _, e := range lexicon {
		out = e.pattern.ReplaceAllString(out, e.formal)
	}
	return out
}

var (
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[\s.-]?)?(\(?\d{3}\)?[\s.-]?)\d{3}[\s.-]?\d{4}\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// maskContacts replaces phone numbers with a fixed placeholder phrase
// and email addresses with a masked mailto placeholder.
func maskContacts(text string) string {
	out := phonePattern.ReplaceAllString(text, phonePlaceholder)
	out = emailPattern.ReplaceAllString(out, emailPlaceholder)
	return out
}

// normalizeText collapses whitespace, capitalizes sentence starts and
// guarantees terminal punctuation.
func normalizeText(text string) string {
	out := strings.Join(strings.Fields(text), " ")
	if out == "" {
		return out
	}
	sentences := splitKeepDelims(out, ".!?")
	var b strings.Builder
	for _, s := range sentences {
		b.WriteString(capitalizeFirst(s.body))
		b.WriteString(s.delim)
	}
	out = b.String()
	if !strings.ContainsRune(".!?", rune(out[len(out)-1])) {
		out += "."
	}
	return out
}

func capitalizeFirst(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			return s[:i] + string(unicode.ToUpper(r)) + s[i+len(string(r)):]
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	return s
}

func leadingSpace(s string) string {
	trimmed := strings.TrimLeft(s, " \t")
	return s[:len(s)-len(trimmed)]
}

type segment struct {
	body  string
	delim string
}

// splitKeepDelims splits on any rune in delims, keeping the delimiter
// run attached to each segment so rejoining reproduces the shape.
func splitKeepDelims(s, delims string) []segment {
	var out []segment
	start := 0
	i := 0
	for i < len(s) {
		if strings.ContainsRune(delims, rune(s[i])) {
			j := i
			for j < len(s) && strings.ContainsRune(delims, rune(s[j])) {
				j++
			}
			out = append(out, segment{body: s[start:i], delim: s[i:j]})
			start = j
			i = j
			continue
		}
		i++
	}
	if start < len(s) {
		out = append(out, segment{body: s[start:], delim: ""})
	}
	return out
}
