package speechtext

import (
	"strings"
	"unicode"
)

// pictographs lists the emoji and symbol blocks that text-to-speech engines
// either spell out or choke on.
var pictographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200D, Hi: 0x200D, Stride: 1}, // Zero width joiner
		{Lo: 0x20E3, Hi: 0x20E3, Stride: 1}, // Combining enclosing keycap
		{Lo: 0x231A, Hi: 0x231B, Stride: 1}, // Watch, hourglass
		{Lo: 0x23E9, Hi: 0x23F3, Stride: 1},
		{Lo: 0x23F8, Hi: 0x23FA, Stride: 1},
		{Lo: 0x25AA, Hi: 0x25AB, Stride: 1}, // Squares
		{Lo: 0x25B6, Hi: 0x25B6, Stride: 1}, // Play button
		{Lo: 0x25C0, Hi: 0x25C0, Stride: 1}, // Reverse button
		{Lo: 0x25FB, Hi: 0x25FE, Stride: 1}, // Squares
		{Lo: 0x2600, Hi: 0x26FF, Stride: 1}, // Miscellaneous symbols
		{Lo: 0x2700, Hi: 0x27BF, Stride: 1}, // Dingbats
		{Lo: 0x2934, Hi: 0x2935, Stride: 1}, // Arrows
		{Lo: 0x2B05, Hi: 0x2B07, Stride: 1}, // Arrows
		{Lo: 0x2B1B, Hi: 0x2B1C, Stride: 1}, // Squares
		{Lo: 0x2B50, Hi: 0x2B50, Stride: 1}, // Star
		{Lo: 0x2B55, Hi: 0x2B55, Stride: 1}, // Circle
		{Lo: 0x3030, Hi: 0x3030, Stride: 1}, // Wavy dash
		{Lo: 0x303D, Hi: 0x303D, Stride: 1}, // Part alternation mark
		{Lo: 0x3297, Hi: 0x3297, Stride: 1}, // Circled ideograph congratulation
		{Lo: 0x3299, Hi: 0x3299, Stride: 1}, // Circled ideograph secret
		{Lo: 0xFE00, Hi: 0xFE0F, Stride: 1}, // Variation selectors
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1}, // Regional indicators (flags)
		{Lo: 0x1F300, Hi: 0x1F64F, Stride: 1}, // Pictographs and emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // Transport and map
		{Lo: 0x1F900, Hi: 0x1FAFF, Stride: 1}, // Supplemental pictographs, chess, extended-A
		{Lo: 0xE0020, Hi: 0xE007F, Stride: 1}, // Tag characters (subdivision flags)
	},
}

func isPictograph(r rune) bool {
	return unicode.Is(pictographs, r)
}

func stripPictographs(text string) string {
	return strings.Map(func(r rune) rune {
		if isPictograph(r) {
			return -1
		}
		return r
	}, text)
}
