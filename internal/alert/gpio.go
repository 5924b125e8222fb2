package alert

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// GPIOOutput drives the annunciator LEDs and buzzer through GPIO pins.
type GPIOOutput struct {
	pins map[Channel]gpio.PinIO
}

// Pins names the output pin for each channel, e.g. "GPIO22".
type Pins struct {
	CriticalLED string
	LowLED      string
	NormalLED   string
	Buzzer      string
}

// NewGPIOOutput opens all four pins for output, initially low.
func NewGPIOOutput(p Pins) (*GPIOOutput, error) {
	names := map[Channel]string{
		ChannelCritical: p.CriticalLED,
		ChannelLow:      p.LowLED,
		ChannelNormal:   p.NormalLED,
		ChannelBuzzer:   p.Buzzer,
	}

	pins := make(map[Channel]gpio.PinIO, len(names))
	for ch, name := range names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("alert: no such pin %q for %s", name, ch)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("alert: could not configure pin %q: %w", name, err)
		}
		pins[ch] = pin
	}

	return &GPIOOutput{pins: pins}, nil
}

// Set drives one channel's line.
func (g *GPIOOutput) Set(ch Channel, on bool) {
	if pin, ok := g.pins[ch]; ok {
		_ = pin.Out(gpio.Level(on))
	}
}
