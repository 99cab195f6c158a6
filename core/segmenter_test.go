package orchestration

import (
	"strings"
	"testing"

	"github.com/koscakluka/ema-voice/core/speechtext"
)

func feedWordByWord(s *segmenter, text string) []SpeechChunk {
	var chunks []SpeechChunk
	for i := range text {
		if text[i] == ' ' || text[i] == '\n' {
			chunks = append(chunks, s.Feed(text[:i+1])...)
		}
	}
	chunks = append(chunks, s.Feed(text)...)
	return append(chunks, s.Finalize(text)...)
}

func chunkTexts(chunks []SpeechChunk) []string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	return texts
}

func TestSegmenterStreamsParagraphs(t *testing.T) {
	const text = "Hello world. This is a test.\n\nSecond paragraph here."
	expected := []string{"Hello world.", "This is a test. Second paragraph here."}

	config := DefaultSegmenterConfig()
	config.TargetChunkSize = 20

	testCases := []struct {
		name string
		feed func(*segmenter) []SpeechChunk
	}{
		{
			name: "word by word",
			feed: func(s *segmenter) []SpeechChunk { return feedWordByWord(s, text) },
		},
		{
			name: "all at once",
			feed: func(s *segmenter) []SpeechChunk {
				return append(s.Feed(text), s.Finalize(text)...)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := tc.feed(newSegmenter(config, speechtext.NewCleaner()))
			got := chunkTexts(chunks)
			if strings.Join(got, "|") != strings.Join(expected, "|") {
				t.Fatalf("expected chunks %q, got %q", expected, got)
			}
			if !chunks[len(chunks)-1].Forced {
				t.Fatalf("expected last chunk to be forced")
			}
		})
	}
}

func TestSegmenterChunkProperties(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20) +
		"\n\n## A heading\n\n- first item\n- second item\n\nFinal words! Are they spoken? Yes."

	config := DefaultSegmenterConfig()
	config.TargetChunkSize = 60
	chunks := feedWordByWord(newSegmenter(config, speechtext.NewCleaner()), text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	lastEnd := 0
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("expected chunk index %d, got %d", i, chunk.Index)
		}
		if !speechtext.IsSpeakable(chunk.Text) {
			t.Fatalf("expected chunk %d to be speakable, got %q", i, chunk.Text)
		}
		if chunk.Start < lastEnd || chunk.End < chunk.Start {
			t.Fatalf("expected ordered offsets, chunk %d spans [%d, %d) after %d", i, chunk.Start, chunk.End, lastEnd)
		}
		if chunk.Forced != (i == len(chunks)-1) {
			t.Fatalf("expected only the last chunk to be forced, chunk %d forced=%v", i, chunk.Forced)
		}
		lastEnd = chunk.End
	}
	if lastEnd != len(text) {
		t.Fatalf("expected chunks to cover the text up to %d, got %d", len(text), lastEnd)
	}
}

func TestSegmenterSkipsCodeBlocks(t *testing.T) {
	const text = "Intro line here.\n```go\nfmt.Println(1)\n```\nAfter the code block.\n"

	s := newSegmenter(DefaultSegmenterConfig(), speechtext.NewCleaner())
	got := chunkTexts(append(s.Feed(text), s.Finalize(text)...))

	expected := []string{"Intro line here.", "After the code block."}
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Fatalf("expected chunks %q, got %q", expected, got)
	}
}

func TestSegmenterWaitsForUnclosedFence(t *testing.T) {
	const text = "Look:\n```python\nprint("

	s := newSegmenter(DefaultSegmenterConfig(), speechtext.NewCleaner())
	got := chunkTexts(s.Feed(text))
	if len(got) != 1 || got[0] != "Look:" {
		t.Fatalf("expected only the text before the fence, got %q", got)
	}
	if rest := s.Finalize(text); len(rest) != 0 {
		t.Fatalf("expected unclosed code to be dropped, got %q", chunkTexts(rest))
	}
}

func TestSegmenterWaitsForLookahead(t *testing.T) {
	s := newSegmenter(DefaultSegmenterConfig(), speechtext.NewCleaner())
	if chunks := s.Feed("Hi.\n"); len(chunks) != 0 {
		t.Fatalf("expected no chunks below the lookahead, got %q", chunkTexts(chunks))
	}

	chunks := s.Finalize("Hi.\n")
	if len(chunks) != 1 || chunks[0].Text != "Hi." {
		t.Fatalf("expected forced chunk %q, got %q", "Hi.", chunkTexts(chunks))
	}
}

func TestSegmenterSentenceNeedsFollowingCapital(t *testing.T) {
	s := newSegmenter(DefaultSegmenterConfig(), speechtext.NewCleaner())
	if chunks := s.Feed("Version 2.5 is out. it"); len(chunks) != 0 {
		t.Fatalf("expected no boundary before a lowercase word, got %q", chunkTexts(chunks))
	}

	chunks := s.Feed("Version 2.5 is out. It works")
	if len(chunks) != 1 || chunks[0].Text != "Version 2.5 is out." {
		t.Fatalf("expected first sentence chunk, got %q", chunkTexts(chunks))
	}
}

func TestSegmenterAccumulatesBelowTarget(t *testing.T) {
	config := DefaultSegmenterConfig()
	config.TargetChunkSize = 30

	s := newSegmenter(config, speechtext.NewCleaner())
	text := "First line.\nShort.\nTiny.\nThis one is long enough to go.\nEnd"
	got := chunkTexts(append(s.Feed(text), s.Finalize(text)...))

	expected := []string{"First line.", "Short. Tiny. This one is long enough to go.", "End"}
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Fatalf("expected chunks %q, got %q", expected, got)
	}
}

func TestSegmenterIgnoresFeedAfterFinalize(t *testing.T) {
	s := newSegmenter(DefaultSegmenterConfig(), speechtext.NewCleaner())
	s.Finalize("Done already.")

	if chunks := s.Feed("Done already. More text arrives.\n"); len(chunks) != 0 {
		t.Fatalf("expected no chunks after finalize, got %q", chunkTexts(chunks))
	}
	if chunks := s.Finalize("Done already. More text arrives.\n"); len(chunks) != 0 {
		t.Fatalf("expected second finalize to be a no-op, got %q", chunkTexts(chunks))
	}
}
