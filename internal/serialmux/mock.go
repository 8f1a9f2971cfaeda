package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// MockPort implements Porter with scripted reads and captured writes for
// tests.
type MockPort struct {
	mu sync.Mutex

	readBuffer  bytes.Buffer
	writeBuffer bytes.Buffer

	// ReadErr is returned by the next Read call if set.
	ReadErr error
	// WriteErr is returned by the next Write call if set.
	WriteErr error

	closed bool
}

// NewMockPort creates a MockPort preloaded with the given input.
func NewMockPort(input []byte) *MockPort {
	p := &MockPort{}
	p.readBuffer.Write(input)
	return p
}

// Read returns scripted data until it is exhausted.
func (p *MockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.ReadErr != nil {
		err := p.ReadErr
		p.ReadErr = nil
		return 0, err
	}
	return p.readBuffer.Read(b)
}

// Write captures written bytes.
func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteErr != nil {
		err := p.WriteErr
		p.WriteErr = nil
		return 0, err
	}
	return p.writeBuffer.Write(b)
}

// Close marks the port closed.
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// AddReadData appends data to be returned by subsequent Read calls.
func (p *MockPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuffer.Write(data)
}

// WrittenData returns everything written to the port so far.
func (p *MockPort) WrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.writeBuffer.Bytes()...)
}
