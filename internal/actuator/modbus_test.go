package actuator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
)

type fakeWriter struct {
	writes []string
	err    error
}

func (f *fakeWriter) WriteSingleCoil(address, value uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.writes = append(f.writes, fmt.Sprintf("coil %d=%04x", address, value))
	return nil, nil
}

func (f *fakeWriter) WriteSingleRegister(address, value uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.writes = append(f.writes, fmt.Sprintf("register %d=%d", address, value))
	return nil, nil
}

func TestModbusWrites(t *testing.T) {
	w := &fakeWriter{}
	m := newModbus(w, config.ModbusConfig{OpenCoil: 3, StopCoil: 4, PositionRegister: 10})
	ctx := context.Background()

	if err := m.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.MoveTo(ctx, 55); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}

	want := []string{
		"coil 3=ff00",
		"coil 3=0000",
		"coil 4=ff00",
		"coil 4=0000",
		"register 10=55",
	}
	if !reflect.DeepEqual(w.writes, want) {
		t.Errorf("writes = %v, want %v", w.writes, want)
	}
}

func TestModbusUnsupported(t *testing.T) {
	w := &fakeWriter{}
	m := newModbus(w, config.ModbusConfig{OpenCoil: 0, StopCoil: -1, PositionRegister: -1})
	ctx := context.Background()

	if err := m.Stop(ctx); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Stop() error = %v, want ErrUnsupported", err)
	}
	if err := m.MoveTo(ctx, 10); !errors.Is(err, ErrUnsupported) {
		t.Errorf("MoveTo() error = %v, want ErrUnsupported", err)
	}
	if len(w.writes) != 0 {
		t.Errorf("writes = %v, want none", w.writes)
	}
}

func TestModbusWriteFailure(t *testing.T) {
	busErr := errors.New("i/o timeout")
	m := newModbus(&fakeWriter{err: busErr}, config.ModbusConfig{StopCoil: -1, PositionRegister: -1})

	err := m.Open(context.Background())
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, busErr) {
		t.Errorf("Open() error = %v, want ErrWriteFailed wrapping bus error", err)
	}
}

func TestModbusReleaseWithoutTransport(t *testing.T) {
	m := newModbus(&fakeWriter{}, config.ModbusConfig{})
	if err := m.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}
