package actuator

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
)

// Coil values for FC5 (write single coil).
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// writer is the subset of modbus.Client used to drive the valve.
type writer interface {
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// transport is satisfied by both the TCP and RTU client handlers.
type transport interface {
	modbus.ClientHandler
	Close() error
}

// Modbus drives a relay module: the open coil energises the valve, the
// optional stop coil is pulsed to halt travel and the optional holding
// register takes a target position.
type Modbus struct {
	mu        sync.Mutex
	transport transport
	client    writer

	openCoil         uint16
	stopCoil         int
	positionRegister int
}

// NewModbus creates a Modbus actuator. The connection is opened lazily by
// the first write.
func NewModbus(cfg config.ModbusConfig) (*Modbus, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	var t transport
	switch cfg.Mode {
	case "tcp":
		h := modbus.NewTCPClientHandler(net.JoinHostPort(cfg.TCPHost, strconv.Itoa(cfg.TCPPort)))
		h.Timeout = timeout
		h.SlaveId = byte(cfg.SlaveID) // #nosec G115 -- validated 0..247
		t = h
	case "rtu":
		h := modbus.NewRTUClientHandler(cfg.RTUDevice)
		h.BaudRate = cfg.RTUBaud
		h.Timeout = timeout
		h.SlaveId = byte(cfg.SlaveID) // #nosec G115 -- validated 0..247
		t = h
	default:
		return nil, fmt.Errorf("%w: modbus mode %q", ErrUnknownType, cfg.Mode)
	}

	m := newModbus(modbus.NewClient(t), cfg)
	m.transport = t
	return m, nil
}

func newModbus(client writer, cfg config.ModbusConfig) *Modbus {
	return &Modbus{
		client:           client,
		openCoil:         uint16(cfg.OpenCoil), // #nosec G115 -- validated 0..65535
		stopCoil:         cfg.StopCoil,
		positionRegister: cfg.PositionRegister,
	}
}

// Open energises the open coil.
func (m *Modbus) Open(ctx context.Context) error {
	return m.write(ctx, "open coil", func() error {
		_, err := m.client.WriteSingleCoil(m.openCoil, coilOn)
		return err
	})
}

// Close releases the open coil.
func (m *Modbus) Close(ctx context.Context) error {
	return m.write(ctx, "open coil", func() error {
		_, err := m.client.WriteSingleCoil(m.openCoil, coilOff)
		return err
	})
}

// Stop pulses the stop coil.
func (m *Modbus) Stop(ctx context.Context) error {
	if m.stopCoil < 0 {
		return fmt.Errorf("%w: no stop coil configured", ErrUnsupported)
	}
	addr := uint16(m.stopCoil) // #nosec G115 -- non-negative coil address
	return m.write(ctx, "stop coil", func() error {
		if _, err := m.client.WriteSingleCoil(addr, coilOn); err != nil {
			return err
		}
		_, err := m.client.WriteSingleCoil(addr, coilOff)
		return err
	})
}

// MoveTo writes the target position to the position register.
func (m *Modbus) MoveTo(ctx context.Context, position int16) error {
	if m.positionRegister < 0 {
		return fmt.Errorf("%w: no position register configured", ErrUnsupported)
	}
	addr := uint16(m.positionRegister) // #nosec G115 -- non-negative register address
	return m.write(ctx, "position register", func() error {
		_, err := m.client.WriteSingleRegister(addr, uint16(position)) // #nosec G115 -- two's complement on the wire
		return err
	})
}

// Release closes the Modbus connection.
func (m *Modbus) Release() error {
	if m.transport == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport.Close()
}

func (m *Modbus) write(ctx context.Context, target string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fn(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, target, err)
	}
	return nil
}
