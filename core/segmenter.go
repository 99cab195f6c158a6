package orchestration

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/koscakluka/ema-voice/core/speechtext"
)

const codeFence = "```"

var (
	paragraphBreakPattern = regexp.MustCompile(`\n\s*\n`)
	sentenceEndPattern    = regexp.MustCompile(`[.!?]\s+[\p{Lu}\p{Lo}]`)
)

type SegmenterConfig struct {
	// MinLookahead is the number of uncommitted characters required before a
	// boundary is searched for.
	MinLookahead int
	// TargetChunkSize is the size, in characters, at which accumulated text is
	// emitted as a chunk.
	TargetChunkSize int
	// FirstChunkMinLength lets the first chunk of a response go out as soon as
	// it is this long, so speech starts early.
	FirstChunkMinLength int
	// MaxIterations bounds the boundary search of a single Feed call.
	MaxIterations int
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		MinLookahead:        5,
		TargetChunkSize:     300,
		FirstChunkMinLength: 5,
		MaxIterations:       32,
	}
}

func (c SegmenterConfig) withDefaults() SegmenterConfig {
	defaults := DefaultSegmenterConfig()
	if c.MinLookahead <= 0 {
		c.MinLookahead = defaults.MinLookahead
	}
	if c.TargetChunkSize <= 0 {
		c.TargetChunkSize = defaults.TargetChunkSize
	}
	if c.FirstChunkMinLength <= 0 {
		c.FirstChunkMinLength = defaults.FirstChunkMinLength
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaults.MaxIterations
	}
	return c
}

// SpeechChunk is one unit of cleaned text sent to synthesis. Start and End are
// byte offsets into the speech text the chunk was cut from.
type SpeechChunk struct {
	Index  int
	Text   string
	Start  int
	End    int
	Forced bool
}

// segmenter cuts the growing speech text of one response into chunks at
// natural boundaries. It is not safe for concurrent use.
type segmenter struct {
	config  SegmenterConfig
	cleaner *speechtext.Cleaner

	committed    int
	pending      string
	pendingStart int
	emitted      int
	finalized    bool
}

func newSegmenter(config SegmenterConfig, cleaner *speechtext.Cleaner) *segmenter {
	return &segmenter{config: config.withDefaults(), cleaner: cleaner}
}

// Feed consumes as much of speechText as can be cut at a boundary and returns
// the chunks that became ready. speechText must extend the text passed to
// earlier calls.
func (s *segmenter) Feed(speechText string) []SpeechChunk {
	if s.finalized || s.committed > len(speechText) {
		return nil
	}

	var chunks []SpeechChunk
	for range s.config.MaxIterations {
		suffix := speechText[s.committed:]
		if utf8.RuneCountInString(suffix) < s.config.MinLookahead {
			break
		}

		trimmed := strings.TrimLeft(suffix, " \t\r\n")
		if strings.HasPrefix(trimmed, codeFence) {
			closing := strings.Index(trimmed[len(codeFence):], codeFence)
			if closing < 0 {
				break
			}
			s.committed += len(suffix) - len(trimmed) + len(codeFence) + closing + len(codeFence)
			continue
		}

		searchArea := suffix
		fenceAt := strings.Index(suffix, codeFence)
		if fenceAt > 0 {
			searchArea = suffix[:fenceAt]
		}

		boundary, ok := s.findBoundary(searchArea)
		if !ok {
			if fenceAt <= 0 {
				break
			}
			boundary = fenceAt
		}

		start := s.committed
		s.committed += boundary
		if chunk, ok := s.accept(suffix[:boundary], start, false); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Finalize emits everything not yet emitted as one forced chunk and stops
// the segmenter.
func (s *segmenter) Finalize(speechText string) []SpeechChunk {
	if s.finalized {
		return nil
	}
	s.finalized = true

	rest := ""
	start := s.committed
	if s.committed < len(speechText) {
		rest = speechText[s.committed:]
		s.committed = len(speechText)
	}

	chunk, ok := s.accept(rest, start, true)
	if !ok {
		return nil
	}
	return []SpeechChunk{chunk}
}

// accept combines a raw candidate with the pending text and decides whether
// the result goes out now.
func (s *segmenter) accept(candidate string, start int, forced bool) (SpeechChunk, bool) {
	cleaned := s.cleaner.Clean(candidate)
	if cleaned == "" && !forced {
		return SpeechChunk{}, false
	}
	if s.pending == "" {
		s.pendingStart = start
	}

	combined := joinSpeech(s.pending, cleaned)
	if !speechtext.IsSpeakable(combined) {
		s.pending = ""
		return SpeechChunk{}, false
	}

	length := utf8.RuneCountInString(combined)
	if !forced && length < s.config.TargetChunkSize &&
		(s.emitted > 0 || length < s.config.FirstChunkMinLength) {
		s.pending = combined
		return SpeechChunk{}, false
	}

	chunk := SpeechChunk{
		Index:  s.emitted,
		Text:   combined,
		Start:  s.pendingStart,
		End:    s.committed,
		Forced: forced,
	}
	s.emitted++
	s.pending = ""
	return chunk, true
}

// findBoundary returns the end offset of the next candidate in area. Until
// something has been emitted or buffered the earliest boundary of any kind is
// used so speech starts as soon as possible. After that paragraph breaks win
// over line breaks, which win over sentence ends.
func (s *segmenter) findBoundary(area string) (int, bool) {
	paragraph := -1
	if loc := paragraphBreakPattern.FindStringIndex(area); loc != nil {
		paragraph = loc[1]
	}
	line := -1
	if i := strings.IndexByte(area, '\n'); i >= 0 {
		line = i + 1
	}
	sentence := -1
	if loc := sentenceEndPattern.FindStringIndex(area); loc != nil {
		sentence = loc[0] + 1
	}

	if s.emitted == 0 && s.pending == "" {
		earliest := -1
		for _, boundary := range []int{paragraph, line, sentence} {
			if boundary > 0 && (earliest < 0 || boundary < earliest) {
				earliest = boundary
			}
		}
		return earliest, earliest > 0
	}

	for _, boundary := range []int{paragraph, line, sentence} {
		if boundary > 0 {
			return boundary, true
		}
	}
	return 0, false
}

func joinSpeech(pending, text string) string {
	switch {
	case pending == "":
		return text
	case text == "":
		return pending
	default:
		return pending + " " + text
	}
}
