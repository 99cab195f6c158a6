package speechtext

import (
	"regexp"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"
)

// maxCleanPasses bounds the search for a fixed point of the markup stages.
// Removing one layer of markup can expose another (an emoji in front of a
// quote marker), so a single pass is not always idempotent.
const maxCleanPasses = 64

var (
	toolStatusLinePattern = regexp.MustCompile(`(?m)^[ \t]*>[ \t]*\S{1,4}[ \t]*\*\*Tool (?:Call|Finished|Failed):\*\*.*$`)
	thinkBlockPattern     = regexp.MustCompile(`(?is)<think>.*?</think>`)
	unclosedThinkPattern  = regexp.MustCompile(`(?is)<think>.*$`)
	strayThinkPattern     = regexp.MustCompile(`(?i)</?think>`)
	htmlTagPattern        = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9:-]*(?:\s[^<>]*)?/?>`)

	imagePattern = regexp.MustCompile(`!\[([^\]\n]*)\]\([^)\n]*\)`)
	linkPattern  = regexp.MustCompile(`\[([^\]\n]*)\]\([^)\n]*\)`)
	urlPattern   = regexp.MustCompile(`(?:https?://|www\.)[^\s<>()\[\]]+`)

	closedFencePattern   = regexp.MustCompile("(?s)```.*?```")
	unclosedFencePattern = regexp.MustCompile("(?s)```.*$")
	inlineCodePattern    = regexp.MustCompile("`([^`\n]+)`")

	headingPattern          = regexp.MustCompile(`^[ \t]*(?:#{1,6}[ \t]+)+(.*?)[ \t#]*$`)
	ruleLinePattern         = regexp.MustCompile(`^[ \t]*(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	trailingEmphasisPattern = regexp.MustCompile(`(\*\*[^*\n]+\*\*|__[^_\n]+__|\*[^*\n]+\*)[ \t]*$`)

	lineMarkerPattern    = regexp.MustCompile(`(?m)^[ \t]*(?:>[ \t]?|(?:[-*+•]|\d{1,3}[.)])[ \t]+)+`)
	markdownCharsPattern = regexp.MustCompile("[*~|`]")

	quoteReplacer = strings.NewReplacer(
		"‘", "'", "’", "'", "‚", "'",
		"“", " ", "”", " ", "„", " ", "«", " ", "»", " ",
		"…", ".",
	)
	pausePattern         = regexp.MustCompile(`[ \t]*[—–→⇒=•◦▪▸►][ \t]*|[ \t]+-{1,2}[ \t]+`)
	ellipsisPattern      = regexp.MustCompile(`\.{3,}`)
	sentenceSpacePattern = regexp.MustCompile(`([.!?])(\p{Lu})`)
	commaRunPattern      = regexp.MustCompile(`,(?:[ \t]*,)+`)
	commaTerminalPattern = regexp.MustCompile(`,[ \t]*([.!?;:])`)
	leadingCommaPattern  = regexp.MustCompile(`(?m)^[ \t]*,[ \t]*`)

	horizontalSpacePattern  = regexp.MustCompile(`[ \t\f\v\x{00A0}\x{3000}]+`)
	spaceBeforePunctPattern = regexp.MustCompile(`[ \t]+([,.!?;:])`)
	blankRunPattern         = regexp.MustCompile(`\n{3,}`)
)

// Cleaner turns display-oriented model output into text suitable for speech
// synthesis. The zero value and a nil Cleaner clean without a dictionary.
type Cleaner struct {
	dictionary atomic.Pointer[Dictionary]
}

type CleanerOption func(*Cleaner)

// WithDictionary sets the pronunciation dictionary applied after markup has
// been removed.
func WithDictionary(dictionary *Dictionary) CleanerOption {
	return func(c *Cleaner) {
		c.dictionary.Store(dictionary)
	}
}

func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDictionary swaps the dictionary used by subsequent Clean calls. Safe to
// call while other goroutines are cleaning.
func (c *Cleaner) SetDictionary(dictionary *Dictionary) {
	if c == nil {
		return
	}
	c.dictionary.Store(dictionary)
}

func (c *Cleaner) Dictionary() *Dictionary {
	if c == nil {
		return nil
	}
	return c.dictionary.Load()
}

// Clean strips markup, reasoning, code, links and pictographs from text,
// applies the dictionary and normalizes punctuation. It returns an empty
// string when nothing speakable remains.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}

	out := cleanToFixedPoint(text)
	if dictionary := c.Dictionary(); dictionary.Len() > 0 {
		out = cleanToFixedPoint(dictionary.Apply(out))
	}

	if !IsSpeakable(out) {
		return ""
	}
	return out
}

var defaultCleaner = NewCleaner()

// Clean cleans text without a dictionary.
func Clean(text string) string {
	return defaultCleaner.Clean(text)
}

// IsSpeakable reports whether text contains at least one letter or digit in
// any script.
func IsSpeakable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// cleanToFixedPoint repeats cleanOnce until the text stops changing.
func cleanToFixedPoint(text string) string {
	for range maxCleanPasses {
		next := cleanOnce(text)
		if next == text {
			return text
		}
		text = next
	}
	logger.Warn("cleaning did not reach a fixed point", "passes", maxCleanPasses)
	return text
}

func cleanOnce(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// Non-spoken regions
	text = toolStatusLinePattern.ReplaceAllString(text, "")
	text = thinkBlockPattern.ReplaceAllString(text, "")
	text = unclosedThinkPattern.ReplaceAllString(text, "")
	text = strayThinkPattern.ReplaceAllString(text, "")
	text = htmlTagPattern.ReplaceAllString(text, "")

	// Links
	text = imagePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = urlPattern.ReplaceAllString(text, "")

	// Code
	text = closedFencePattern.ReplaceAllString(text, "")
	text = unclosedFencePattern.ReplaceAllString(text, "")
	text = inlineCodePattern.ReplaceAllString(text, "$1")

	// Structure has to become punctuation before the markers are gone
	text = terminateStructure(text)

	text = lineMarkerPattern.ReplaceAllString(text, "")
	text = markdownCharsPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "_", " ")

	text = stripPictographs(text)

	text = quoteReplacer.Replace(text)
	text = pausePattern.ReplaceAllString(text, ", ")
	text = ellipsisPattern.ReplaceAllString(text, ".")
	text = sentenceSpacePattern.ReplaceAllString(text, "$1 $2")
	text = commaRunPattern.ReplaceAllString(text, ",")
	text = commaTerminalPattern.ReplaceAllString(text, "$1")
	text = leadingCommaPattern.ReplaceAllString(text, "")

	return tidyWhitespace(text)
}

func terminateStructure(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case ruleLinePattern.MatchString(line):
			terminateLastLine(out)
			continue

		case headingPattern.MatchString(line):
			heading := strings.TrimSpace(headingPattern.FindStringSubmatch(line)[1])
			if heading == "" {
				continue
			}
			line = withTerminalPunctuation(heading)

		default:
			loc := trailingEmphasisPattern.FindStringSubmatchIndex(line)
			if loc == nil {
				break
			}
			inner := strings.Trim(line[loc[2]:loc[3]], "*_ \t")
			if inner != "" && !endsWithPunctuation(inner) {
				line = line[:loc[3]] + "." + line[loc[3]:]
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func terminateLastLine(lines []string) {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimRight(lines[i], " \t")
		if trimmed == "" {
			continue
		}
		if !endsWithPunctuation(strings.TrimRight(trimmed, "*_")) {
			lines[i] = trimmed + "."
		}
		return
	}
}

func withTerminalPunctuation(text string) string {
	if endsWithPunctuation(text) {
		return text
	}
	return text + "."
}

func endsWithPunctuation(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(".!?:;。！？", r)
}

func tidyWhitespace(text string) string {
	text = horizontalSpacePattern.ReplaceAllString(text, " ")
	text = spaceBeforePunctPattern.ReplaceAllString(text, "$1")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !IsSpeakable(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")

	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
