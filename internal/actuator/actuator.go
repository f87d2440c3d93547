package actuator

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
)

// Actuator drives a valve. Implementations are safe for concurrent use.
type Actuator interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Stop(ctx context.Context) error
	MoveTo(ctx context.Context, position int16) error

	// Release frees the underlying connection.
	Release() error
}

// New builds the actuator selected by cfg.Type.
func New(cfg config.ActuatorConfig) (Actuator, error) {
	switch cfg.Type {
	case config.ActuatorEcho, "":
		return NewEcho(), nil
	case config.ActuatorModbus:
		return NewModbus(cfg.Modbus)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// Echo accepts every command without touching hardware and remembers what
// it was asked to do.
type Echo struct {
	mu       sync.Mutex
	commands []string
}

// NewEcho creates an Echo actuator.
func NewEcho() *Echo {
	return &Echo{}
}

func (e *Echo) record(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	e.mu.Unlock()
	return nil
}

func (e *Echo) Open(ctx context.Context) error  { return e.record(ctx, "open") }
func (e *Echo) Close(ctx context.Context) error { return e.record(ctx, "close") }
func (e *Echo) Stop(ctx context.Context) error  { return e.record(ctx, "stop") }

func (e *Echo) MoveTo(ctx context.Context, position int16) error {
	return e.record(ctx, fmt.Sprintf("move_to(%d)", position))
}

// Release is a no-op.
func (e *Echo) Release() error { return nil }

// Commands returns the commands received so far, oldest first.
func (e *Echo) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}
