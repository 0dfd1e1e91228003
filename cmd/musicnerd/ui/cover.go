package ui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"musicnerd/internal/assets"
)

// upperHalf draws the top pixel in the foreground and the bottom pixel in
// the background, so each cell shows two image rows.
const upperHalf = "▀"

// CoverCells renders img as columns x columns/2 terminal cells. A nil image
// renders as blank space of the same size so the layout does not jump.
func CoverCells(img image.Image, columns int) string {
	if columns <= 0 {
		return ""
	}
	rows := (columns + 1) / 2
	if img == nil {
		return BlankCover(columns)
	}

	small := assets.Scale(img, columns, rows*2)
	b := small.Bounds()

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < columns; col++ {
			top := hexColor(small.At(b.Min.X+col, b.Min.Y+row*2))
			bottom := hexColor(small.At(b.Min.X+col, b.Min.Y+row*2+1))
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render(upperHalf))
		}
		if row < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// BlankCover is the empty image area.
func BlankCover(columns int) string {
	if columns <= 0 {
		return ""
	}
	rows := (columns + 1) / 2
	line := strings.Repeat(" ", columns)
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func hexColor(c interface{ RGBA() (r, g, b, a uint32) }) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
