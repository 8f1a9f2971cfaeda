package serialmux

import (
	"go.bug.st/serial"
)

// NewDeviceMux creates a LineMux backed by a real serial port at the
// given path using the provided serial options.
func NewDeviceMux(path string, opts PortOptions) (*LineMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewLineMux[serial.Port](port), nil
}
