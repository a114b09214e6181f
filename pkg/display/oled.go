package display

import (
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/logging"
)

// I2C addresses of the two panels. The right panel has its address
// jumper bridged.
const (
	addrLeft  = 0x3C
	addrRight = 0x3D
)

// OLED drives the two SSD1306 panels over a shared I2C bus.
//
// A panel that fails to initialize is logged and skipped rather than
// taking the whole device down; the box can still run trials with one
// screen dark.
type OLED struct {
	log   zerolog.Logger
	bus   i2c.BusCloser
	left  *ssd1306
	right *ssd1306
}

// Open initializes the I2C bus and both panels. busName selects the bus
// ("1" for /dev/i2c-1, empty for the first available).
func Open(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.HardwareInit("i2c", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.HardwareWrap(err, errors.ErrI2COpenFailed, "failed to open I2C bus").
			WithContext("bus", busName)
	}

	o := &OLED{
		log: logging.Component("display"),
		bus: bus,
	}
	o.left = o.initPanel(addrLeft, hw.SideLeft)
	o.right = o.initPanel(addrRight, hw.SideRight)
	return o, nil
}

// initPanel brings up one panel, returning nil if it is absent or
// unresponsive so the remaining panel keeps working.
func (o *OLED) initPanel(addr uint16, side hw.Side) *ssd1306 {
	panel, err := newSSD1306(o.bus, addr)
	if err != nil {
		o.log.Error().Err(errors.DisplayInit(addr, err)).
			Str("side", string(side)).
			Msg("display unavailable")
		return nil
	}
	o.log.Info().Str("side", string(side)).Msg("display initialized")
	return panel
}

// ShowCue draws the striped cue on one side and blanks the other.
func (o *OLED) ShowCue(side hw.Side) {
	cue := pack(renderCue())
	if side == hw.SideLeft {
		o.push(o.left, hw.SideLeft, cue)
		o.blank(o.right, hw.SideRight)
	} else {
		o.push(o.right, hw.SideRight, cue)
		o.blank(o.left, hw.SideLeft)
	}
}

// ShowTestPattern draws the identification pattern on both panels.
func (o *OLED) ShowTestPattern() {
	o.push(o.left, hw.SideLeft, pack(renderTestPattern(hw.SideLeft)))
	o.push(o.right, hw.SideRight, pack(renderTestPattern(hw.SideRight)))
}

// Clear blanks both panels.
func (o *OLED) Clear() {
	o.blank(o.left, hw.SideLeft)
	o.blank(o.right, hw.SideRight)
}

// Simulating reports false; this implementation drives real panels.
func (o *OLED) Simulating() bool { return false }

// Close blanks both panels and releases the bus.
func (o *OLED) Close() error {
	o.Clear()
	return o.bus.Close()
}

func (o *OLED) push(panel *ssd1306, side hw.Side, frame []byte) {
	if panel == nil {
		return
	}
	if err := panel.draw(frame); err != nil {
		o.log.Warn().Err(err).Str("side", string(side)).Msg("display write failed")
	}
}

func (o *OLED) blank(panel *ssd1306, side hw.Side) {
	if panel == nil {
		return
	}
	if err := panel.clear(); err != nil {
		o.log.Warn().Err(err).Str("side", string(side)).Msg("display write failed")
	}
}
