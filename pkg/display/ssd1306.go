package display

import (
	"periph.io/x/conn/v3/i2c"

	"github.com/nyxlab/boxd/pkg/errors"
)

// I2C control bytes. Each transfer starts with one of these to tell the
// controller whether the following bytes are commands or framebuffer data.
const (
	ctrlCommand = 0x00
	ctrlData    = 0x40
)

// initSequence configures a 128x64 panel with the internal charge pump
// and horizontal addressing, so a full frame is one linear write.
var initSequence = []byte{
	0xAE,       // display off
	0xD5, 0x80, // clock divide ratio
	0xA8, 0x3F, // multiplex ratio 64
	0xD3, 0x00, // display offset
	0x40,       // start line 0
	0x8D, 0x14, // charge pump on
	0x20, 0x00, // horizontal addressing mode
	0xA1,       // segment remap
	0xC8,       // COM scan direction
	0xDA, 0x12, // COM pins configuration
	0x81, 0xCF, // contrast
	0xD9, 0xF1, // pre-charge period
	0xDB, 0x40, // VCOM deselect level
	0xA4, // resume from RAM
	0xA6, // normal (non-inverted) display
	0x2E, // deactivate scroll
	0xAF, // display on
}

// ssd1306 is a minimal driver for one SSD1306 panel: initialize, write a
// full frame, blank. Partial updates are not needed; the box redraws the
// whole screen on every state change.
type ssd1306 struct {
	dev        *i2c.Dev
	blankFrame []byte
}

func newSSD1306(bus i2c.Bus, addr uint16) (*ssd1306, error) {
	d := &ssd1306{
		dev:        &i2c.Dev{Addr: addr, Bus: bus},
		blankFrame: make([]byte, frameBytes),
	}
	if err := d.commands(initSequence...); err != nil {
		return nil, err
	}
	if err := d.clear(); err != nil {
		return nil, err
	}
	return d, nil
}

// commands sends a command stream.
func (d *ssd1306) commands(cmds ...byte) error {
	buf := make([]byte, 0, len(cmds)+1)
	buf = append(buf, ctrlCommand)
	buf = append(buf, cmds...)
	if err := d.dev.Tx(buf, nil); err != nil {
		return errors.HardwareWrap(err, errors.ErrDisplayWriteFailed, "display command failed")
	}
	return nil
}

// draw writes a packed frame to the full screen.
func (d *ssd1306) draw(frame []byte) error {
	if err := d.commands(
		0x21, 0, Width-1, // column range
		0x22, 0, Height/8-1, // page range
	); err != nil {
		return err
	}
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, ctrlData)
	buf = append(buf, frame...)
	if err := d.dev.Tx(buf, nil); err != nil {
		return errors.HardwareWrap(err, errors.ErrDisplayWriteFailed, "display frame write failed")
	}
	return nil
}

// clear blanks the screen.
func (d *ssd1306) clear() error {
	return d.draw(d.blankFrame)
}
