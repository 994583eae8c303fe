// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/billcall/internal/bus"
	"github.com/tomtom215/billcall/internal/logging"
)

// Program runs the dashboard as a supervised service. Bus traffic wakes
// the model; otherwise it redraws once a second.
type Program struct {
	deps   Deps
	bus    *bus.Bus
	onQuit func()
	opts   []tea.ProgramOption
}

// NewProgram creates the service. onQuit runs when staff press q, so the
// caller can stop the process.
func NewProgram(deps Deps, b *bus.Bus, onQuit func(), opts ...tea.ProgramOption) *Program {
	return &Program{deps: deps, bus: b, onQuit: onQuit, opts: opts}
}

// Serve implements suture.Service.
func (p *Program) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, p.opts...)
	prog := tea.NewProgram(New(p.deps), opts...)

	wake := make(chan struct{}, 1)
	if p.bus != nil {
		go func() {
			err := bus.Consume(ctx, p.bus, "tui", func(context.Context, bus.Delivery) error {
				select {
				case wake <- struct{}{}:
				default:
				}
				return nil
			}, bus.Topics...)
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn().Err(err).Msg("tui bus listener stopped")
			}
		}()
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				prog.Send(changedMsg{})
			}
		}
	}()

	_, err := prog.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if p.onQuit != nil {
		p.onQuit()
	}
	return suture.ErrDoNotRestart
}

func (p *Program) String() string {
	return "tui"
}
