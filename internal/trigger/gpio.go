package trigger

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// GPIOInput reads the trigger button from a GPIO pin, active high with
// the internal pull-down engaged.
type GPIOInput struct {
	pin gpio.PinIO
}

// NewGPIOInput opens the named pin (e.g. "GPIO17") for input.
func NewGPIOInput(name string) (*GPIOInput, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("trigger: no such pin %q", name)
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("trigger: could not configure pin %q: %w", name, err)
	}
	return &GPIOInput{pin: pin}, nil
}

// Level reports whether the button is currently pressed.
func (g *GPIOInput) Level() bool { return g.pin.Read() == gpio.High }
