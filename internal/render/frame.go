package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Pixel geometry for the 256x64 board. basicfont.Face7x13 gives a 7px
// advance, so columns below are multiples of the glyph width.
const (
	lineHeight = 13
	marginX    = 2

	colModeX = 2   // transport mode tag
	colLineX = 26  // line label
	colDestX = 58  // destination
	colTimeX = 178 // time block, grows rightwards
)

var (
	fg = color.Gray{Y: 0xFF}
	bg = color.Gray{Y: 0x00}
)

// DrawFrame rasterizes a layout onto a fresh grayscale canvas. The whole
// canvas is cleared first, so nothing from an earlier frame can bleed
// through. Lines that do not fit the fixed height are clipped, never an
// error; the number of clipped lines is returned so callers can log it.
func DrawFrame(l Layout) (*image.Gray, int) {
	img := image.NewGray(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	clear(img)

	// Header: stop summary left, clock right.
	drawString(img, marginX, baseline(0), truncate(l.Header, headerColumns(l.Clock)))
	drawString(img, CanvasWidth-marginX-textWidth(l.Clock), baseline(0), l.Clock)

	clipped := 0
	for i, line := range l.Lines {
		row := i + 1
		if (row+1)*lineHeight > CanvasHeight {
			clipped = len(l.Lines) - i
			break
		}
		drawLine(img, row, line)
	}

	return img, clipped
}

func drawLine(img *image.Gray, rowIdx int, line Line) {
	y := baseline(rowIdx)

	switch line.Kind {
	case KindDeparture:
		drawRow(img, y, line.Row)
	case KindStopHeader, KindNotice, KindDelaySummary:
		drawString(img, marginX, y, truncate(line.Text, columnsAcross()))
	}
}

func drawRow(img *image.Gray, y int, row *Row) {
	drawString(img, colModeX, y, row.ModeTag)
	drawString(img, colLineX, y, truncate(row.Line, (colDestX-colLineX)/glyphWidth-1))

	destCols := (colTimeX-colDestX)/glyphWidth - 1
	drawString(img, colDestX, y, truncate(row.Destination, destCols))

	x := colTimeX
	if row.StruckTime != "" {
		drawString(img, x, y, row.StruckTime)
		strike(img, x, y, textWidth(row.StruckTime))
		x += textWidth(row.StruckTime) + glyphWidth/2
	}
	drawString(img, x, y, row.TimeText)
	x += textWidth(row.TimeText)
	if row.DelayMarker {
		drawString(img, x, y, DelayGlyph)
	}
}

const glyphWidth = 7

func baseline(rowIdx int) int {
	return rowIdx*lineHeight + basicfont.Face7x13.Ascent
}

func headerColumns(clock string) int {
	return (CanvasWidth-2*marginX)/glyphWidth - len(clock) - 1
}

func columnsAcross() int {
	return (CanvasWidth - 2*marginX) / glyphWidth
}

func textWidth(s string) int {
	return len([]rune(s)) * glyphWidth
}

// truncate clips a string to max columns. Overflow is recovered by
// clipping, per the render contract. Rune-based so Nordic stop names do
// not get cut mid-character.
func truncate(s string, max int) string {
	if max < 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func drawString(img *image.Gray, x, y int, s string) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// strike draws a horizontal line through text starting at x on baseline y.
func strike(img *image.Gray, x, y, width int) {
	midY := y - basicfont.Face7x13.Ascent/2
	for i := 0; i < width; i++ {
		img.SetGray(x+i, midY, fg)
	}
}

func clear(img *image.Gray) {
	for i := range img.Pix {
		img.Pix[i] = bg.Y
	}
}
