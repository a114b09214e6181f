package hw

import (
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/logging"
)

// Raspberry Pi pin assignments for the box harness.
const (
	pinLeverLeft       = "GPIO24"
	pinLeverRight      = "GPIO23"
	pinNoseIR          = "GPIO17"
	pinWaterValve      = "GPIO25"
	pinNoseLight       = "GPIO27"
	pinLeverLightLeft  = "GPIO22"
	pinLeverLightRight = "GPIO26"
)

// GPIO drives the real box through the Raspberry Pi header.
//
// Input pins are read live on every snapshot. Output pins cannot be read
// back reliably, so commanded levels are mirrored in memory.
type GPIO struct {
	log zerolog.Logger

	leverLeft  gpio.PinIn
	leverRight gpio.PinIn
	noseIR     gpio.PinIn

	waterValve      gpio.PinOut
	noseLight       gpio.PinOut
	leverLightLeft  gpio.PinOut
	leverLightRight gpio.PinOut

	mu  sync.Mutex
	out struct {
		waterValve      bool
		noseLight       bool
		leverLightLeft  bool
		leverLightRight bool
	}
}

// NewGPIO initializes the host GPIO and configures all box pins.
// The levers are active-low with pull-ups; the IR beam is active-high
// with a pull-down.
func NewGPIO() (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.HardwareInit("host", err)
	}

	g := &GPIO{log: logging.Component("gpio")}

	var err error
	if g.leverLeft, err = inputPin(pinLeverLeft, gpio.PullUp); err != nil {
		return nil, err
	}
	if g.leverRight, err = inputPin(pinLeverRight, gpio.PullUp); err != nil {
		return nil, err
	}
	if g.noseIR, err = inputPin(pinNoseIR, gpio.PullDown); err != nil {
		return nil, err
	}

	if g.waterValve, err = outputPin(pinWaterValve); err != nil {
		return nil, err
	}
	if g.noseLight, err = outputPin(pinNoseLight); err != nil {
		return nil, err
	}
	if g.leverLightLeft, err = outputPin(pinLeverLightLeft); err != nil {
		return nil, err
	}
	if g.leverLightRight, err = outputPin(pinLeverLightRight); err != nil {
		return nil, err
	}

	g.log.Info().Msg("GPIO initialized")
	return g, nil
}

func inputPin(name string, pull gpio.Pull) (gpio.PinIn, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.PinNotFound(name)
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, errors.HardwareInit(name, err)
	}
	return pin, nil
}

func outputPin(name string) (gpio.PinOut, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.PinNotFound(name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, errors.HardwareInit(name, err)
	}
	return pin, nil
}

// Read returns the live input levels plus the mirrored output levels.
func (g *GPIO) Read() Snapshot {
	g.mu.Lock()
	snap := Snapshot{
		WaterValve:      g.out.waterValve,
		NoseLight:       g.out.noseLight,
		LeverLightLeft:  g.out.leverLightLeft,
		LeverLightRight: g.out.leverLightRight,
	}
	g.mu.Unlock()

	// Levers are active-low, the IR beam is active-high.
	snap.LeverLeft = g.leverLeft.Read() == gpio.Low
	snap.LeverRight = g.leverRight.Read() == gpio.Low
	snap.NoseIR = g.noseIR.Read() == gpio.High

	return snap
}

// SetWaterValve opens or closes the water valve.
func (g *GPIO) SetWaterValve(open bool) {
	g.mu.Lock()
	g.out.waterValve = open
	g.mu.Unlock()
	g.drive(g.waterValve, pinWaterValve, open)
}

// SetNoseLight drives the nose port LED.
func (g *GPIO) SetNoseLight(on bool) {
	g.mu.Lock()
	g.out.noseLight = on
	g.mu.Unlock()
	g.drive(g.noseLight, pinNoseLight, on)
}

// SetLeverLight drives the lever LED on the given side.
func (g *GPIO) SetLeverLight(side Side, on bool) {
	g.mu.Lock()
	if side == SideLeft {
		g.out.leverLightLeft = on
	} else {
		g.out.leverLightRight = on
	}
	g.mu.Unlock()

	if side == SideLeft {
		g.drive(g.leverLightLeft, pinLeverLightLeft, on)
	} else {
		g.drive(g.leverLightRight, pinLeverLightRight, on)
	}
}

// ResetOutputs turns the valve and all lights off.
func (g *GPIO) ResetOutputs() {
	g.SetWaterValve(false)
	g.SetNoseLight(false)
	g.SetLeverLight(SideLeft, false)
	g.SetLeverLight(SideRight, false)
}

// Simulating always returns false for real GPIO.
func (g *GPIO) Simulating() bool {
	return false
}

// Close leaves all outputs off. The host GPIO needs no explicit release.
func (g *GPIO) Close() error {
	g.ResetOutputs()
	return nil
}

// drive writes a level to an output pin. Write failures are logged and
// the session keeps running; a stuck LED must not abort a trial.
func (g *GPIO) drive(pin gpio.PinOut, name string, on bool) {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := pin.Out(level); err != nil {
		g.log.Error().Err(err).Str("pin", name).Msg("GPIO write failed")
	}
}
