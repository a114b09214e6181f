package display

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/nyxlab/boxd/pkg/hw"
)

// Cue geometry. The cue is a circle of alternating vertical stripes
// centered on the screen.
const (
	cueCenterX  = Width / 2
	cueCenterY  = Height / 2
	cueRadius   = 25
	cueStripes  = 24
	stripeWidth = Width / cueStripes
)

// frameBytes is the size of a packed SSD1306 framebuffer: 8 pages of
// 128 column bytes.
const frameBytes = Width * Height / 8

var (
	pixelOn  = color.Gray{Y: 0xFF}
	pixelOff = color.Gray{Y: 0x00}
)

// newFrame returns a blank frame.
func newFrame() *image.Gray {
	return image.NewGray(image.Rect(0, 0, Width, Height))
}

// renderCue draws the striped cue circle onto a fresh frame. Each stripe
// is a filled bar with a dark one-pixel outline, so adjacent stripes read
// as a high-contrast grating the animal can resolve from the nose port.
func renderCue() *image.Gray {
	img := newFrame()
	for i := 0; i < cueStripes; i++ {
		pos := i * stripeWidth
		d := pos - cueCenterX
		if d < 0 {
			d = -d
		}
		if d > cueRadius {
			continue
		}
		// Chord length of the circle at this horizontal offset.
		length := 2 * int(math.Sqrt(float64(cueRadius*cueRadius-d*d)))
		outlinedRect(img, pos, cueCenterY-length/2, pos+stripeWidth-1, cueCenterY+length/2)
	}
	return img
}

// renderTestPattern draws the identification pattern for one screen: a
// border, a label, and a side-specific glyph (rectangle on the left,
// ellipse on the right) so the two screens can be told apart at a glance.
func renderTestPattern(side hw.Side) *image.Gray {
	img := newFrame()
	drawBorder(img)
	if side == hw.SideLeft {
		drawText(img, 5, 5, "Left Display")
		fillRect(img, 20, 30, 108, 50)
	} else {
		drawText(img, 5, 5, "Right Display")
		fillEllipse(img, 20, 30, 108, 50)
	}
	return img
}

// drawBorder outlines the full screen.
func drawBorder(img *image.Gray) {
	for x := 0; x < Width; x++ {
		img.SetGray(x, 0, pixelOn)
		img.SetGray(x, Height-1, pixelOn)
	}
	for y := 0; y < Height; y++ {
		img.SetGray(0, y, pixelOn)
		img.SetGray(Width-1, y, pixelOn)
	}
}

// drawText renders s with its top-left corner at (x, y).
func drawText(img *image.Gray, x, y int, s string) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(pixelOn),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(s)
}

// fillRect fills the rectangle with corners (x0, y0) and (x1, y1),
// inclusive, clamped to the frame.
func fillRect(img *image.Gray, x0, y0, x1, y1 int) {
	x0, y0 = clampPoint(x0, y0)
	x1, y1 = clampPoint(x1, y1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetGray(x, y, pixelOn)
		}
	}
}

// outlinedRect fills the rectangle and then darkens its one-pixel border.
// SetGray discards out-of-range pixels, so edges may extend past the frame.
func outlinedRect(img *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetGray(x, y, pixelOn)
		}
	}
	for x := x0; x <= x1; x++ {
		img.SetGray(x, y0, pixelOff)
		img.SetGray(x, y1, pixelOff)
	}
	for y := y0; y <= y1; y++ {
		img.SetGray(x0, y, pixelOff)
		img.SetGray(x1, y, pixelOff)
	}
}

// fillEllipse fills the ellipse inscribed in the rectangle with corners
// (x0, y0) and (x1, y1).
func fillEllipse(img *image.Gray, x0, y0, x1, y1 int) {
	cx := float64(x0+x1) / 2
	cy := float64(y0+y1) / 2
	rx := float64(x1-x0) / 2
	ry := float64(y1-y0) / 2
	if rx <= 0 || ry <= 0 {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			if dx*dx+dy*dy <= 1 {
				img.SetGray(x, y, pixelOn)
			}
		}
	}
}

func clampPoint(x, y int) (int, int) {
	if x < 0 {
		x = 0
	}
	if x >= Width {
		x = Width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= Height {
		y = Height - 1
	}
	return x, y
}

// pack converts a frame into the SSD1306 page layout: 8 pages top to
// bottom, each a row of 128 bytes where bit 0 is the topmost pixel.
func pack(img *image.Gray) []byte {
	buf := make([]byte, frameBytes)
	for page := 0; page < Height/8; page++ {
		for x := 0; x < Width; x++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				if img.GrayAt(x, page*8+bit).Y >= 0x80 {
					b |= 1 << uint(bit)
				}
			}
			buf[page*Width+x] = b
		}
	}
	return buf
}
