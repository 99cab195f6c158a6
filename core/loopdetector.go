package orchestration

import (
	"errors"
	"unicode"
)

// ErrRepetitionLoop is the cancel cause of a generation stopped because the
// model kept repeating itself.
var ErrRepetitionLoop = errors.New("repetition loop detected")

const loopWarning = "\n\n> ⚠️ **Generation stopped:** repetition loop detected.\n"

type LoopDetectorConfig struct {
	// MinTextLength is the text length, in characters, below which no check
	// is made.
	MinTextLength int

	ShortPatternMin     int
	ShortPatternMax     int
	ShortPatternRepeats int

	LongPatternMin     int
	LongPatternMax     int
	LongPatternRepeats int
}

func DefaultLoopDetectorConfig() LoopDetectorConfig {
	return LoopDetectorConfig{
		MinTextLength:       100,
		ShortPatternMin:     5,
		ShortPatternMax:     49,
		ShortPatternRepeats: 10,
		LongPatternMin:      50,
		LongPatternMax:      200,
		LongPatternRepeats:  6,
	}
}

// loopDetector looks for a pattern repeated back to back anywhere in the
// generated text. The text is fed incrementally and every newly appended rune
// is checked as a possible end of a loop. Once it fires it stays silent.
type loopDetector struct {
	config LoopDetectorConfig
	fired  bool

	// consumed is the byte length of the text already scanned
	consumed int
	total    int
	// recent holds at least the last maxPeriod runes
	recent []rune
	// streaks[p] counts consecutive runes equal to the rune p positions back
	streaks []int
}

func newLoopDetector(config LoopDetectorConfig) *loopDetector {
	return &loopDetector{config: config}
}

// Check scans the part of text appended since the previous call and reports
// true the first time it contains a repetition loop. text is expected to grow
// by appending; anything else restarts the scan.
func (d *loopDetector) Check(text string) bool {
	if d == nil || d.fired {
		return false
	}
	if len(text) < d.consumed {
		d.reset()
	}

	maxPeriod := d.maxPeriod()
	if maxPeriod <= 0 {
		return false
	}
	if d.streaks == nil {
		d.streaks = make([]int, maxPeriod+1)
	}

	for _, r := range text[d.consumed:] {
		d.recent = append(d.recent, r)
		d.total++
		if d.scanLast(maxPeriod) {
			d.fired = true
			break
		}
		if len(d.recent) > 2*maxPeriod {
			d.recent = append(d.recent[:0], d.recent[len(d.recent)-maxPeriod:]...)
		}
	}
	d.consumed = len(text)

	return d.fired
}

func (d *loopDetector) Fired() bool {
	return d != nil && d.fired
}

func (d *loopDetector) reset() {
	d.consumed, d.total = 0, 0
	d.recent = d.recent[:0]
	clear(d.streaks)
}

// scanLast updates the streaks for the rune just appended and reports whether
// a loop ends at it.
func (d *loopDetector) scanLast(maxPeriod int) bool {
	last := len(d.recent) - 1
	found := false
	for period := 1; period <= maxPeriod; period++ {
		if last < period || d.recent[last] != d.recent[last-period] {
			d.streaks[period] = 0
			continue
		}
		d.streaks[period]++

		repeats := d.repeatsFor(period)
		if found || repeats < 2 || d.total < d.config.MinTextLength {
			continue
		}
		if d.streaks[period] >= period*(repeats-1) && hasWordCharacter(d.recent[last-period+1:]) {
			found = true
		}
	}
	return found
}

func (d *loopDetector) maxPeriod() int {
	return max(d.config.ShortPatternMax, d.config.LongPatternMax)
}

// repeatsFor returns how many back to back copies of a pattern of length
// period make a loop, or 0 when no range covers period.
func (d *loopDetector) repeatsFor(period int) int {
	switch {
	case period >= d.config.ShortPatternMin && period <= d.config.ShortPatternMax:
		return d.config.ShortPatternRepeats
	case period >= d.config.LongPatternMin && period <= d.config.LongPatternMax:
		return d.config.LongPatternRepeats
	default:
		return 0
	}
}

func hasWordCharacter(pattern []rune) bool {
	for _, r := range pattern {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
