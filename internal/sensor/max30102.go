package sensor

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// MAX30102 register map (the subset the monitor touches).
const (
	regIntStat1  = 0x00
	regIntEna1   = 0x02
	regFIFOWrPtr = 0x04
	regOvfCount  = 0x05
	regFIFORdPtr = 0x06
	regFIFOData  = 0x07
	regFIFOCfg   = 0x08
	regModeCfg   = 0x09
	regSpO2Cfg   = 0x0A
	regLed1PA    = 0x0C
	regLed2PA    = 0x0D
	regPartID    = 0xFF
)

const (
	max30102Addr   = 0x57
	max30102PartID = 0x15

	flagNewFIFOData byte = 1 << 6

	modeSpO2     byte = 0b011
	resetControl byte = 0b0100_0000

	// SpO2 configuration: ADC range 4096nA, 50 samples/s, 411us pulse
	// width (18-bit resolution). 50 Hz is the slowest rate the part
	// offers; the acquisition loop downsamples to the configured rate
	// by pacing reads.
	spo2Cfg byte = 0b0_01_000_11

	// 7.0mA LED drive on both channels.
	ledAmplitude byte = 0x24

	// Sample averaging 4, FIFO rollover enabled.
	fifoCfg byte = 0b010_1_0000
)

// ErrNotMAX30102 is returned when the part ID read over I2C does not
// match the MAX30102 signature.
var ErrNotMAX30102 = errors.New("sensor: part ID does not match MAX30102 (0x15)")

// MAX30102Source reads paired samples from a MAX30102 pulse oximeter
// over I2C. One FIFO frame is 6 bytes: 3 bytes red, 3 bytes IR, 18-bit
// left-aligned counts.
type MAX30102Source struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// NewMAX30102Source opens busName (empty selects the first available
// bus), verifies the part ID and programs SpO2 mode.
func NewMAX30102Source(busName string) (*MAX30102Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("sensor: could not initialize host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("sensor: could not open I2C bus: %w", err)
	}

	s := &MAX30102Source{
		dev: &i2c.Dev{Addr: max30102Addr, Bus: bus},
		bus: bus,
	}

	part, err := s.read(regPartID)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("sensor: could not read part ID: %w", err)
	}
	if part != max30102PartID {
		bus.Close()
		return nil, ErrNotMAX30102
	}

	if err := s.configure(); err != nil {
		bus.Close()
		return nil, err
	}

	return s, nil
}

func (s *MAX30102Source) configure() error {
	if err := s.write(regModeCfg, resetControl); err != nil {
		return fmt.Errorf("sensor: could not reset MAX30102: %w", err)
	}
	for {
		state, err := s.read(regModeCfg)
		if err != nil {
			return fmt.Errorf("sensor: could not poll reset: %w", err)
		}
		if state&resetControl == 0 {
			break
		}
	}

	steps := []struct {
		reg, val byte
	}{
		{regFIFOCfg, fifoCfg},
		{regSpO2Cfg, spo2Cfg},
		{regLed1PA, ledAmplitude},
		{regLed2PA, ledAmplitude},
		{regIntEna1, flagNewFIFOData},
		{regModeCfg, modeSpO2},
		{regFIFOWrPtr, 0},
		{regOvfCount, 0},
		{regFIFORdPtr, 0},
	}
	for _, st := range steps {
		if err := s.write(st.reg, st.val); err != nil {
			return fmt.Errorf("sensor: could not configure register %#x: %w", st.reg, err)
		}
	}
	return nil
}

// Ready reports whether the FIFO holds at least one unread frame.
func (s *MAX30102Source) Ready() bool {
	wr, err := s.read(regFIFOWrPtr)
	if err != nil {
		return false
	}
	rd, err := s.read(regFIFORdPtr)
	if err != nil {
		return false
	}
	if wr != rd {
		return true
	}
	// Equal pointers are ambiguous (empty or full); the data-ready
	// interrupt flag disambiguates.
	state, err := s.read(regIntStat1)
	if err != nil {
		return false
	}
	return state&flagNewFIFOData != 0
}

// ReadSample pops one 6-byte frame off the FIFO.
func (s *MAX30102Source) ReadSample() (Sample, error) {
	const msbMask byte = 0b0000_0011

	buf := make([]byte, 6)
	if err := s.dev.Tx([]byte{regFIFOData}, buf); err != nil {
		return Sample{}, fmt.Errorf("sensor: could not read FIFO frame: %w", err)
	}

	red := uint32(buf[0]&msbMask)<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	ir := uint32(buf[3]&msbMask)<<16 | uint32(buf[4])<<8 | uint32(buf[5])

	return Sample{Red: red, IR: ir}, nil
}

// Close shuts the device down and releases the bus.
func (s *MAX30102Source) Close() error {
	// Shutdown bit keeps register state but powers the LEDs off.
	_ = s.write(regModeCfg, 0b1000_0000)
	return s.bus.Close()
}

func (s *MAX30102Source) read(reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := s.dev.Tx([]byte{reg}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *MAX30102Source) write(reg, data byte) error {
	_, err := s.dev.Write([]byte{reg, data})
	return err
}
