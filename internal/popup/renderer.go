package popup

import "github.com/garypippi/jacin/internal/coordinator"

// SolidRenderer draws the popup as flat color blocks: a background
// fill plus a colored bar whose width scales with preedit length and a
// second bar when candidates are present. It does no glyph
// rasterization (spec.md §1 excludes that); a real text renderer
// implements the same Renderer interface and drops in without
// Surface changes.
type SolidRenderer struct {
	Background [4]byte // B, G, R, A (little-endian argb8888 byte order)
	PreeditBar [4]byte
	Candidate  [4]byte
	Message    [4]byte
}

// DefaultSolidRenderer matches the teacher's muted blue/gray palette
// (internal/ui's ColorPrimary/ColorSubtle) translated to raw pixels
// since the popup has no lipgloss terminal to render into.
var DefaultSolidRenderer = SolidRenderer{
	Background: [4]byte{40, 40, 40, 230},
	PreeditBar: [4]byte{215, 160, 60, 255},
	Candidate:  [4]byte{190, 150, 40, 255},
	Message:    [4]byte{60, 90, 210, 255},
}

func (r SolidRenderer) Render(pixels []byte, width, height, stride int, content coordinator.PopupContent) {
	fill(pixels, stride, height, r.Background)

	const barHeight = 4
	if !content.Preedit.Empty() {
		w := barWidth(len(content.Preedit.Text), width)
		fillRect(pixels, stride, 4, 4, w, barHeight, r.PreeditBar)
	}
	if !content.Candidates.Empty() {
		w := barWidth(len(content.Candidates.Entries), width)
		fillRect(pixels, stride, 4, 12, w, barHeight, r.Candidate)
	}
	if content.Message != "" {
		w := barWidth(len(content.Message), width)
		fillRect(pixels, stride, 4, 20, w, barHeight, r.Message)
	}
}

func barWidth(units, maxWidth int) int {
	w := units*8 + 8
	if w > maxWidth-8 {
		w = maxWidth - 8
	}
	return w
}

func fill(pixels []byte, stride, height int, color [4]byte) {
	for y := 0; y < height; y++ {
		row := pixels[y*stride : (y+1)*stride]
		for x := 0; x+4 <= len(row); x += 4 {
			copy(row[x:x+4], color[:])
		}
	}
}

func fillRect(pixels []byte, stride, x, y, w, h int, color [4]byte) {
	for dy := 0; dy < h; dy++ {
		rowStart := (y+dy)*stride + x*4
		rowEnd := rowStart + w*4
		if rowEnd > len(pixels) {
			rowEnd = len(pixels)
		}
		for px := rowStart; px+4 <= rowEnd; px += 4 {
			copy(pixels[px:px+4], color[:])
		}
	}
}
