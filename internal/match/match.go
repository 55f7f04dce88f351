// internal/match/match.go

// Package match holds the alias and cue matching used when reading user
// text against an agent roster. Matching precedence, highest first:
//
//  1. explicit @-mentions
//  2. direct name or alias at a word boundary
//  3. role token containment
//  4. exclusivity cues (quantifiers, directive verbs)
//  5. exclusion cues (prepositions, negations, "keep X out")
//
// An id matched by an exclusivity cue is never also treated as excluded.
// Everything here is pure string work: no I/O, no state.
package match

import (
	"regexp"
	"strings"
)

// Keyword sets shared by the intent parser and the router
var (
	UrgencyKeywords   = []string{"urgent", "asap", "rush", "immediately", "now"}
	StopKeywords      = []string{"stop", "hold", "pause", "halt", "freeze"}
	BroadcastPhrases  = []string{"everyone", "everybody", "all of you", "whole team", "you all"}
	DirectSpeechCues  = []string{"respond directly", "speak directly", "answer directly", "reply directly", "talk directly to me"}
	leadingQualifiers = `(?:only|just|solely|exclusively|alone)`
	trailingQualifier = `(?:only|alone|exclusively)`
	directiveVerbs    = `(?:let|have|allow|need|should|ask|want)`
	actionVerbs       = `(?:respond|answer|speak|reply|handle|weigh in|take this)`
	exclusionPreps    = `(?:except|excluding|without|skip|omit|leave out|besides|aside from)`
	negations         = `(?:shouldn't|should not|don't|do not|can't|cannot|won't|will not|isn't|is not|aren't|are not)`
)

var (
	mentionPattern  = regexp.MustCompile(`@(\w+)`)
	wordPattern     = regexp.MustCompile(`[a-z][a-z0-9'-]*`)
	documentPattern = regexp.MustCompile(`\b(?:don't|do not|no|not|never|without|avoid|skip)\b[^.!?]{0,40}\b(?:write|writing|draft|drafting|create|creating|compose|composing|produce|producing|make|making)\b[^.!?]{0,40}\b(?:document|documents|report|reports|memo|memos|deck|decks|doc|docs|write-?up)\b`)
	nonAlias        = regexp.MustCompile(`[^a-z0-9]+`)
)

// Stopwords excluded from topic sampling
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "can": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"with": true, "at": true, "by": true, "from": true, "about": true,
	"into": true, "through": true, "during": true, "before": true, "after": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "how": true, "why": true, "when": true,
	"it": true, "its": true, "you": true, "your": true, "please": true,
}

// AliasSet builds the ordered, deduplicated alias list for an agent:
// full lowercased name, first name token, punctuation-stripped name,
// lowercase concatenation, and the first word of the persona summary.
func AliasSet(name, persona string) []string {
	var aliases []string
	seen := make(map[string]bool)
	add := func(alias string) {
		alias = strings.TrimSpace(strings.ToLower(alias))
		if alias != "" && !seen[alias] {
			aliases = append(aliases, alias)
			seen[alias] = true
		}
	}

	lower := strings.ToLower(name)
	add(lower)
	if fields := strings.Fields(lower); len(fields) > 0 {
		add(fields[0])
	}
	add(nonAlias.ReplaceAllString(lower, " "))
	add(nonAlias.ReplaceAllString(lower, ""))
	if fields := strings.Fields(strings.ToLower(persona)); len(fields) > 0 {
		add(strings.Trim(fields[0], ".,:;!?"))
	}

	return aliases
}

// MentionTokens returns the lowercased @-token bodies found in text
func MentionTokens(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, strings.ToLower(m[1]))
	}
	return tokens
}

// ContainsAlias reports whether alias appears at a word boundary in text.
// Both sides are expected lowercased.
func ContainsAlias(text, alias string) bool {
	if alias == "" {
		return false
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(alias) + `\b`)
	return re.MatchString(text)
}

// RoleTokens splits a role string on whitespace, commas and slashes
func RoleTokens(role string) []string {
	return strings.FieldsFunc(strings.ToLower(role), func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '/'
	})
}

// HasExclusivityCue reports whether text restricts the conversation to the
// aliased agent: a leading quantifier, a trailing quantifier, or a
// directive verb, with an optional action verb after the alias.
func HasExclusivityCue(text, alias string) bool {
	quoted := regexp.QuoteMeta(alias)
	leading := regexp.MustCompile(`\b` + leadingQualifiers + `\s+` + quoted + `\b`)
	if leading.MatchString(text) {
		return true
	}
	trailing := regexp.MustCompile(`\b` + quoted + `\s+` + trailingQualifier + `\b`)
	if trailing.MatchString(text) {
		return true
	}
	directive := regexp.MustCompile(`\b` + directiveVerbs + `\s+` + quoted + `\b(?:\s+(?:to\s+)?` + actionVerbs + `)?`)
	return directive.MatchString(text)
}

// HasExclusionCue reports whether text asks to leave the aliased agent out:
// an exclusion preposition before the alias, a negation after it, or the
// "keep/leave <alias> out" form.
func HasExclusionCue(text, alias string) bool {
	quoted := regexp.QuoteMeta(alias)
	prep := regexp.MustCompile(`\b` + exclusionPreps + `\s+` + quoted + `\b`)
	if prep.MatchString(text) {
		return true
	}
	negated := regexp.MustCompile(`\b` + quoted + `\s+` + negations + `\b`)
	if negated.MatchString(text) {
		return true
	}
	keepOut := regexp.MustCompile(`\b(?:keep|leave)\s+` + quoted + `\s+out\b`)
	return keepOut.MatchString(text)
}

// FoundKeywords returns which of the given keywords appear in text,
// verbatim and in keyword order.
func FoundKeywords(text string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if ContainsAlias(text, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// HasAnyPhrase reports whether any of the phrases appears as a substring
func HasAnyPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// HasDocumentBan reports whether text forbids producing a document
func HasDocumentBan(text string) bool {
	return documentPattern.MatchString(text)
}

// Topics samples up to limit unique lowercase word tokens from text,
// skipping stopwords and short tokens. Keyword sampling, not semantics.
func Topics(text string, limit int) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	var topics []string
	seen := make(map[string]bool)
	for _, w := range words {
		if len(w) <= 2 || stopwords[w] || seen[w] {
			continue
		}
		topics = append(topics, w)
		seen[w] = true
		if len(topics) == limit {
			break
		}
	}
	return topics
}
