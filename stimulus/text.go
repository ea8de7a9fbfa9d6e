package stimulus

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/drbg"
)

const (
	// TextFont is the canvas font every client renders lines with.
	TextFont = "20px Arial"

	// TextFontSize is the pixel size encoded in TextFont, used to crop
	// rendered rows during verification.
	TextFontSize = 20

	// TextTopPadding and TextBottomPadding extend a row crop around the
	// line's baseline.
	TextTopPadding    = 4
	TextBottomPadding = 10

	// textLineBytes is the number of DRBG bytes mapped into each line.
	textLineBytes = 32

	// maxGlyphWidth is the worst-case advance of a rendered glyph; the
	// x anchor keeps the whole line inside the canvas.
	maxGlyphWidth = 30
)

var (
	textMainChars = []rune(
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
			"abcdefghijklmnopqrstuvwxyz" +
			"0123456789" +
			"!@#$%^&*()-_=+[]{};:,.<>/? ")

	// Emojis exercise color glyph rasterization, which differs between
	// font stacks more than plain text does.
	textEmojis = []string{
		"\U0001F600", // grinning face
		"\U0001F60E", // smiling face with sunglasses
		"\U0001F680", // rocket
		"\U0001F525", // fire
		"✨",     // sparkles
		"\U0001F4A1", // light bulb
		"✅",     // check mark
		"\U0001F389", // party popper
		"❤️", // red heart
		"\U0001F3C1", // chequered flag
	}
)

// MapBytesToString deterministically maps each byte to a character. The
// last numEmojis bytes map to emojis, the rest to printable characters.
func MapBytesToString(data []byte, numEmojis int) (string, error) {
	if numEmojis < 0 || numEmojis > len(data) {
		return "", errors.New("emoji count out of range").
			WithType(ErrTypeBadConfiguration).
			WithTag("num_emojis", numEmojis).
			WithTag("len", len(data))
	}

	var b strings.Builder
	cutoff := len(data) - numEmojis
	for _, c := range data[:cutoff] {
		b.WriteRune(textMainChars[int(c)%len(textMainChars)])
	}
	for _, c := range data[cutoff:] {
		b.WriteString(textEmojis[int(c)%len(textEmojis)])
	}
	return b.String(), nil
}

// TextLine is a string with its anchor on the canvas.
type TextLine struct {
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// TextLayout generates canvas text placements. Position is the fast
// stream driving anchors, Text is the slow stream driving line content.
type TextLayout struct {
	Position *drbg.Generator
	Text     *drbg.Generator
}

// Generate returns n text lines walked down the canvas. The y cursor
// starts at 25 and advances 40 to 100 pixels per line; the x anchor
// leaves room for a full line of worst-case glyphs.
func (l *TextLayout) Generate(n, width int) ([]TextLine, error) {
	lines := make([]TextLine, 0, n)
	yCursor := 25

	for i := 0; i < n; i++ {
		x, err := l.Position.RandInt(2, width-textLineBytes*maxGlyphWidth)
		if err != nil {
			return nil, err
		}
		deltaY, err := l.Position.RandInt(40, 100)
		if err != nil {
			return nil, err
		}
		yCursor += deltaY

		raw, err := l.Text.Bytes(textLineBytes)
		if err != nil {
			return nil, err
		}
		text, err := MapBytesToString(raw, 1)
		if err != nil {
			return nil, err
		}

		lines = append(lines, TextLine{Text: text, X: x, Y: yCursor})
	}
	return lines, nil
}
