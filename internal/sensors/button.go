package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// OpenButton configures pin as a pulled-up input. The button shorts it to
// ground, so it reads Low while pressed.
func OpenButton(pin string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("button: periph host init: %w", err)
	}

	p := gpioreg.ByName(pin)
	if p == nil {
		return nil, fmt.Errorf("button: pin %q not found", pin)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("button: configure %s as input: %w", p, err)
	}
	return p, nil
}
